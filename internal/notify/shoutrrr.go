package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/nicholas-fedor/shoutrrr"
	"github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"
)

// ShoutrrrNotifier delivers events to chat/email services through shoutrrr
// URLs (telegram://, smtp://, ...).
type ShoutrrrNotifier struct {
	sender *router.ServiceRouter
}

func NewShoutrrrNotifier(urls []string, timeout time.Duration) (*ShoutrrrNotifier, error) {
	if len(urls) == 0 {
		return nil, errors.New("at least one URL is required")
	}
	sender, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		return nil, fmt.Errorf("creating shoutrrr sender: %w", err)
	}
	if timeout > 0 {
		sender.Timeout = timeout
	}
	sender.SetLogger(log.New(io.Discard, "", 0))
	return &ShoutrrrNotifier{sender: sender}, nil
}

func (s *ShoutrrrNotifier) Name() string { return "shoutrrr" }

func (s *ShoutrrrNotifier) Notify(_ context.Context, event Event) error {
	params := stypes.Params{}
	params.SetTitle(event.Title())

	for _, err := range s.sender.Send(event.Message(), &params) {
		if err != nil {
			return err
		}
	}
	return nil
}
