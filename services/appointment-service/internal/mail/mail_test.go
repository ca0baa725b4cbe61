package mail

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/sendgrid/rest"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSMTP accepts a single session and returns the DATA section it received.
func fakeSMTP(t *testing.T) (addr string, data <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	out := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		tp := textproto.NewConn(conn)
		_ = tp.PrintfLine("220 fake ESMTP")
		for {
			line, err := tp.ReadLine()
			if err != nil {
				return
			}
			cmd := strings.ToUpper(strings.SplitN(line, " ", 2)[0])
			switch cmd {
			case "EHLO", "HELO":
				_ = tp.PrintfLine("250 fake")
			case "MAIL", "RCPT", "RSET", "NOOP":
				_ = tp.PrintfLine("250 OK")
			case "DATA":
				_ = tp.PrintfLine("354 go ahead")
				body, err := tp.ReadDotBytes()
				if err != nil {
					return
				}
				out <- string(body)
				_ = tp.PrintfLine("250 queued")
			case "QUIT":
				_ = tp.PrintfLine("221 bye")
				return
			default:
				_ = tp.PrintfLine("502 not implemented")
			}
		}
	}()
	return ln.Addr().String(), out
}

func TestSMTPSenderSend(t *testing.T) {
	addr, data := fakeSMTP(t)
	host, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)

	s := NewSMTPSender(host, port, From{Email: "no-reply@apptbook.local", Name: "Apptbook"})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = s.Send(ctx, Message{
		To:      "paulo@example.com",
		ToName:  "Paulo",
		Subject: "Appointment canceled",
		Text:    "Carla canceled the appointment.",
	})
	require.NoError(t, err)

	select {
	case body := <-data:
		assert.Contains(t, body, "To: Paulo <paulo@example.com>")
		assert.Contains(t, body, "Subject: Appointment canceled")
		assert.Contains(t, body, "Carla canceled the appointment.")
	case <-time.After(2 * time.Second):
		t.Fatal("no DATA received")
	}
}

func TestBuildMessageMultipart(t *testing.T) {
	now := time.Date(2025, 6, 1, 7, 0, 0, 0, time.UTC)
	raw, err := buildMessage(From{Email: "a@b.c"}, Message{To: "x@y.z", Subject: "Olá", Text: "plain", HTML: "<p>html</p>"}, now)
	require.NoError(t, err)

	r := textproto.NewReader(bufio.NewReader(strings.NewReader(string(raw))))
	hdr, err := r.ReadMIMEHeader()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hdr.Get("Content-Type"), "multipart/alternative; boundary="))
	assert.Equal(t, "=?utf-8?q?Ol=C3=A1?=", hdr.Get("Subject"))
	assert.Contains(t, string(raw), "<p>html</p>")
	assert.Contains(t, string(raw), "plain")
}

func TestValidateRejectsHeaderInjection(t *testing.T) {
	s := NewSMTPSender("127.0.0.1", "1", From{})
	err := s.Send(context.Background(), Message{To: "x@y.z", Subject: "hi\r\nBcc: evil@example.com"})
	assert.Error(t, err)

	err = s.Send(context.Background(), Message{Subject: "hi"})
	assert.Error(t, err)
}

type fakeSES struct {
	in  *sesv2.SendEmailInput
	err error
}

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSESSender(t *testing.T) {
	fake := &fakeSES{}
	s := newSESSender(fake, From{Email: "no-reply@apptbook.local", Name: "Apptbook"}, nil)

	require.NoError(t, s.Send(context.Background(), Message{To: "paulo@example.com", Subject: "Canceled", Text: "t", HTML: "<b>h</b>"}))
	require.NotNil(t, fake.in)
	assert.Equal(t, "Apptbook <no-reply@apptbook.local>", aws.ToString(fake.in.FromEmailAddress))
	assert.Equal(t, []string{"paulo@example.com"}, fake.in.Destination.ToAddresses)
	assert.Equal(t, "<b>h</b>", aws.ToString(fake.in.Content.Simple.Body.Html.Data))

	fake.err = errors.New("throttled")
	assert.ErrorContains(t, s.Send(context.Background(), Message{To: "paulo@example.com"}), "throttled")
}

type fakeSendGrid struct {
	status int
	email  *sgmail.SGMailV3
}

func (f *fakeSendGrid) SendWithContext(_ context.Context, email *sgmail.SGMailV3) (*rest.Response, error) {
	f.email = email
	return &rest.Response{StatusCode: f.status, Body: "{}"}, nil
}

func TestSendGridSender(t *testing.T) {
	fake := &fakeSendGrid{status: 202}
	s := newSendGridSender(fake, From{Email: "no-reply@apptbook.local"}, nil)

	require.NoError(t, s.Send(context.Background(), Message{To: "paulo@example.com", Subject: "Canceled", Text: "t"}))
	require.NotNil(t, fake.email)
	assert.Equal(t, "Canceled", fake.email.Subject)

	fake.status = 401
	assert.ErrorContains(t, s.Send(context.Background(), Message{To: "paulo@example.com"}), "status 401")
}

func TestStubSender(t *testing.T) {
	assert.NoError(t, NewStubSender(nil).Send(context.Background(), Message{To: "x@y.z"}))
}
