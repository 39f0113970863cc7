package email

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/clinic-api/internal/config"
	"github.com/jwalitptl/clinic-api/pkg/logger"
)

type recordingSender struct {
	sent []*gomail.Message
	err  error
}

func (r *recordingSender) DialAndSend(m ...*gomail.Message) error {
	r.sent = append(r.sent, m...)
	return r.err
}

func TestSendWelcome(t *testing.T) {
	rec := &recordingSender{}
	svc := &SMTPService{dialer: rec, from: "noreply@clinic.test"}

	require.NoError(t, svc.SendWelcome(context.Background(), "asha@clinic.test", "Asha", "Sunrise"))
	require.Len(t, rec.sent, 1)
	assert.Equal(t, []string{"asha@clinic.test"}, rec.sent[0].GetHeader("To"))
	assert.Equal(t, []string{"Welcome to Sunrise"}, rec.sent[0].GetHeader("Subject"))
}

func TestSendWelcomeError(t *testing.T) {
	svc := &SMTPService{dialer: &recordingSender{err: errors.New("refused")}, from: "x@y"}
	err := svc.SendWelcome(context.Background(), "a@b", "A", "C")
	assert.ErrorContains(t, err, "refused")
}

func TestNewPicksImplementation(t *testing.T) {
	assert.IsType(t, &LogService{}, New(config.MailConfig{}, logger.Nop()))
	assert.IsType(t, &SMTPService{}, New(config.MailConfig{Enabled: true, Host: "localhost", Port: 25}, logger.Nop()))
}
