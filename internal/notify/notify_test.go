package notify

import (
	"context"
	"errors"
	"net"
	"net/smtp"
	"net/textproto"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type recordingNotifier struct {
	got []Message
	err error
}

func (r *recordingNotifier) Send(_ context.Context, m Message) error {
	r.got = append(r.got, m)
	return r.err
}

func TestMulti_TriesAllAndJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	a := &recordingNotifier{err: boom}
	b := &recordingNotifier{}
	err := Multi{a, b}.Send(context.Background(), Message{To: "x@example.com"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if len(a.got) != 1 || len(b.got) != 1 {
		t.Fatalf("both notifiers should be called: %d %d", len(a.got), len(b.got))
	}
	if err := (Multi{}).Send(context.Background(), Message{}); err != nil {
		t.Fatalf("empty multi: %v", err)
	}
}

func TestLog_Send(t *testing.T) {
	if err := (Log{}).Send(context.Background(), Message{Subject: "s"}); err != nil {
		t.Fatal(err)
	}
}

func TestNewSMTP_Validation(t *testing.T) {
	if _, err := NewSMTP(SMTPConfig{}); err == nil {
		t.Fatal("expected error for empty config")
	}
	s, err := NewSMTP(SMTPConfig{Host: "mail.example.com", From: "ledger@example.com"})
	if err != nil {
		t.Fatal(err)
	}
	if s.cfg.Port != 587 {
		t.Errorf("default port = %d", s.cfg.Port)
	}
}

func TestSMTP_Send(t *testing.T) {
	s, _ := NewSMTP(SMTPConfig{Host: "mail.example.com", Port: 25, Username: "u", Password: "p", From: "ledger@example.com"})
	s.now = func() time.Time { return time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC) }

	var gotAddr string
	var gotTo []string
	var gotMsg string
	s.send = func(_ context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		if a == nil {
			t.Error("expected auth when username is set")
		}
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		return nil
	}

	err := s.Send(context.Background(), Message{To: "user@example.com", Subject: "Report", Body: "line1\nline2"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotAddr != "mail.example.com:25" {
		t.Errorf("addr = %q", gotAddr)
	}
	if len(gotTo) != 1 || gotTo[0] != "user@example.com" {
		t.Errorf("to = %v", gotTo)
	}
	for _, want := range []string{"Subject: Report\r\n", "To: user@example.com\r\n", "line1\r\nline2"} {
		if !strings.Contains(gotMsg, want) {
			t.Errorf("message missing %q:\n%s", want, gotMsg)
		}
	}

	if err := s.Send(context.Background(), Message{}); err == nil {
		t.Error("expected error for missing recipient")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Send(ctx, Message{To: "user@example.com"}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

// smtpServer accepts one session on a local port and runs handle on it.
func smtpServer(t *testing.T, handle func(conn net.Conn)) (host string, port int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		handle(conn)
	}()
	addr := ln.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port
}

func TestSMTP_SendSession(t *testing.T) {
	received := make(chan string, 1)
	host, port := smtpServer(t, func(conn net.Conn) {
		tp := textproto.NewConn(conn)
		_ = tp.PrintfLine("220 ledger-test ESMTP")
		for {
			line, err := tp.ReadLine()
			if err != nil {
				return
			}
			switch cmd := strings.ToUpper(strings.Fields(line + " x")[0]); cmd {
			case "EHLO", "HELO":
				_ = tp.PrintfLine("250 ledger-test")
			case "MAIL", "RCPT":
				_ = tp.PrintfLine("250 OK")
			case "DATA":
				_ = tp.PrintfLine("354 go ahead")
				body, err := tp.ReadDotBytes()
				if err != nil {
					return
				}
				received <- string(body)
				_ = tp.PrintfLine("250 queued")
			case "QUIT":
				_ = tp.PrintfLine("221 bye")
				return
			default:
				_ = tp.PrintfLine("502 unsupported")
			}
		}
	})

	s, _ := NewSMTP(SMTPConfig{Host: host, Port: port, From: "ledger@example.com"})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Send(ctx, Message{To: "user@example.com", Subject: "Report", Body: "spent 10"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	select {
	case body := <-received:
		if !strings.Contains(body, "Subject: Report") || !strings.Contains(body, "spent 10") {
			t.Errorf("unexpected message:\n%s", body)
		}
	case <-time.After(time.Second):
		t.Fatal("server received no message")
	}
}

func TestSMTP_SendHonoursContextOnHungServer(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	host, port := smtpServer(t, func(net.Conn) { <-release })

	s, _ := NewSMTP(SMTPConfig{Host: host, Port: port, From: "ledger@example.com"})
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := s.Send(ctx, Message{To: "user@example.com", Subject: "Report"})
	if err == nil {
		t.Fatal("expected an error from a server that never greets")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("Send blocked for %s", elapsed)
	}
}

type fakeBot struct {
	sent []tgbotapi.Chattable
	err  error
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, f.err
}

func TestTelegram_Send(t *testing.T) {
	bot := &fakeBot{}
	tg := &Telegram{bot: bot, chatID: 42}
	if err := tg.Send(context.Background(), Message{Subject: "Report", Body: "body"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(bot.sent) != 1 {
		t.Fatalf("sent %d messages", len(bot.sent))
	}
	msg, ok := bot.sent[0].(tgbotapi.MessageConfig)
	if !ok {
		t.Fatalf("unexpected chattable %T", bot.sent[0])
	}
	if msg.ChatID != 42 || msg.Text != "Report\n\nbody" {
		t.Errorf("unexpected message: chat=%d text=%q", msg.ChatID, msg.Text)
	}

	bot.err = errors.New("down")
	if err := tg.Send(context.Background(), Message{Body: "x"}); err == nil {
		t.Error("expected error")
	}
}
