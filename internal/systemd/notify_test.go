package systemd

import (
	"context"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"testing"
	"time"
)

func newTestNotifier() *Notifier {
	return NewNotifier(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// listen binds a notify socket and points NOTIFY_SOCKET at it.
func listen(t *testing.T) *net.UnixConn {
	t.Helper()
	addr := &net.UnixAddr{Name: filepath.Join(t.TempDir(), "notify.sock"), Net: "unixgram"}
	conn, err := net.ListenUnixgram("unixgram", addr)
	if err != nil {
		t.Skipf("unixgram sockets unavailable: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	t.Setenv("NOTIFY_SOCKET", addr.Name)
	return conn
}

func receive(t *testing.T, conn *net.UnixConn) string {
	t.Helper()
	buf := make([]byte, 1024)
	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatal(err)
	}
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("read notify socket: %v", err)
	}
	return string(buf[:n])
}

func TestNotifierMessages(t *testing.T) {
	conn := listen(t)
	n := newTestNotifier()

	n.Ready()
	if got := receive(t, conn); got != "READY=1" {
		t.Errorf("Ready sent %q", got)
	}

	n.Status("run %s: %s", "abc", "started")
	if got := receive(t, conn); got != "STATUS=run abc: started" {
		t.Errorf("Status sent %q", got)
	}

	n.Stopping()
	if got := receive(t, conn); got != "STOPPING=1" {
		t.Errorf("Stopping sent %q", got)
	}
}

func TestNotifierOutsideSystemd(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")
	n := newTestNotifier()
	n.Ready()
	n.Status("ignored")
}

func TestWatchdogDisabled(t *testing.T) {
	t.Setenv("WATCHDOG_USEC", "")
	if newTestNotifier().StartWatchdog(context.Background()) {
		t.Error("watchdog started without WATCHDOG_USEC")
	}
}

func TestWatchdogPings(t *testing.T) {
	conn := listen(t)
	t.Setenv("WATCHDOG_USEC", "100000")
	t.Setenv("WATCHDOG_PID", "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if !newTestNotifier().StartWatchdog(ctx) {
		t.Fatal("watchdog not started")
	}
	if got := receive(t, conn); got != "WATCHDOG=1" {
		t.Errorf("watchdog sent %q", got)
	}
}
