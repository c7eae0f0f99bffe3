package email_test

import (
	"bufio"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// fakeSMTP is a minimal line-based SMTP server for exercising the client.
type fakeSMTP struct {
	ln       net.Listener
	greeting string
	ehlo     []string
	auth     string
	rcpt     string

	mu       sync.Mutex
	received []string
}

func newFakeSMTP(t *testing.T) *fakeSMTP {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &fakeSMTP{
		ln:       ln,
		greeting: "220 localhost ESMTP ready",
		ehlo:     []string{"localhost"},
		auth:     "235 2.7.0 Authentication successful",
		rcpt:     "250 OK",
	}
	t.Cleanup(func() { _ = ln.Close() })
	return s
}

func (s *fakeSMTP) start() {
	go func() {
		for {
			conn, err := s.ln.Accept()
			if err != nil {
				return
			}
			go s.serve(conn)
		}
	}()
}

func (s *fakeSMTP) host() string {
	return s.ln.Addr().(*net.TCPAddr).IP.String()
}

func (s *fakeSMTP) port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

func (s *fakeSMTP) data() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.received...)
}

func (s *fakeSMTP) serve(conn net.Conn) {
	defer conn.Close()

	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)
	reply := func(line string) {
		_, _ = w.WriteString(line + "\r\n")
		_ = w.Flush()
	}

	reply(s.greeting)
	if !strings.HasPrefix(s.greeting, "220") {
		return
	}

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		verb := strings.ToUpper(strings.SplitN(line, " ", 2)[0])

		switch verb {
		case "EHLO", "HELO":
			for i, ext := range s.ehlo {
				sep := "-"
				if i == len(s.ehlo)-1 {
					sep = " "
				}
				reply("250" + sep + ext)
			}
		case "AUTH":
			reply(s.auth)
		case "MAIL", "RSET", "NOOP":
			reply("250 OK")
		case "RCPT":
			reply(s.rcpt)
		case "DATA":
			reply("354 End data with <CR><LF>.<CR><LF>")
			var body strings.Builder
			for {
				l, err := r.ReadString('\n')
				if err != nil {
					return
				}
				if strings.TrimRight(l, "\r\n") == "." {
					break
				}
				body.WriteString(l)
			}
			s.mu.Lock()
			s.received = append(s.received, body.String())
			s.mu.Unlock()
			reply("250 OK queued as " + strconv.Itoa(len(s.data())))
		case "QUIT":
			reply("221 Bye")
			return
		case "*":
			reply("501 Auth aborted")
		default:
			reply("502 Command not implemented")
		}
	}
}
