package dispatcher

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/Rohianon/chatcommerce/pkg/errors"
	"github.com/Rohianon/chatcommerce/pkg/logger"
	"github.com/Rohianon/chatcommerce/pkg/metrics"
	"github.com/Rohianon/chatcommerce/pkg/msisdn"
	"github.com/Rohianon/chatcommerce/pkg/telemetry"
	"github.com/Rohianon/chatcommerce/services/bot-service/internal/flow"
	"github.com/Rohianon/chatcommerce/services/bot-service/internal/types"
)

const (
	apologyText     = "Sorry, something went wrong. Please try again by typing *menu*."
	maintenanceText = "🛠️ We are currently undergoing maintenance. Please try again shortly."
	suspendedText   = "⚠️ Your account is currently restricted. Please contact support for assistance."
)

const apologyTimeout = 5 * time.Second

// globalCommands return the caller to the main menu from any state.
var globalCommands = map[string]bool{
	"cancel": true,
	"exit":   true,
	"stop":   true,
	"back":   true,
	"menu":   true,
}

// Inbound is one normalized message from any WhatsApp provider.
type Inbound struct {
	MessageID string
	Phone     string
	Name      string
	Text      string
	MediaID   string
}

type Messenger interface {
	Send(ctx context.Context, to, text string) (string, error)
}

type Users interface {
	GetOrCreate(ctx context.Context, phone, name string) (*types.User, error)
}

type Sessions interface {
	flow.Sessions
	Get(ctx context.Context, phone string) (*types.Session, error)
	CreateDefault(phone string) types.Session
	Save(ctx context.Context, sess types.Session) (types.Session, error)
	Lock(ctx context.Context, phone string) (func(), error)
}

type Config struct {
	MaintenanceMode bool
	SupportContact  string
}

type Dispatcher struct {
	users     Users
	sessions  Sessions
	messenger Messenger
	menu      flow.Handler
	flows     map[string]flow.Handler
	config    Config
}

func New(users Users, sessions Sessions, messenger Messenger, menu flow.Handler, flows map[string]flow.Handler, cfg Config) *Dispatcher {
	return &Dispatcher{
		users:     users,
		sessions:  sessions,
		messenger: messenger,
		menu:      menu,
		flows:     flows,
		config:    cfg,
	}
}

// HandleMessage runs one inbound message through the caller's session and
// sends the replies. Handling for a phone is serialized end to end.
func (d *Dispatcher) HandleMessage(ctx context.Context, in Inbound) error {
	start := time.Now()

	phone, ok := msisdn.Normalize(in.Phone)
	if !ok {
		metrics.RecordInboundMessage("invalid_phone", time.Since(start))
		return apperrors.ErrInvalidPhone.WithDetails(logger.MaskPhone(in.Phone))
	}
	log := logger.WithPhone(ctx, phone)
	ctx = logger.NewContext(ctx, log)

	unlock, err := d.sessions.Lock(ctx, phone)
	if err != nil {
		metrics.RecordInboundMessage("locked", time.Since(start))
		log.Warn().Err(err).Msg("Session busy, message not handled")

		// ctx may be the one that timed out waiting for the lock.
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), apologyTimeout)
		defer cancel()
		if sendErr := d.send(sendCtx, phone, []string{apologyText}); sendErr != nil {
			log.Warn().Err(sendErr).Msg("Failed to send busy apology")
		}
		return err
	}
	defer unlock()

	replies, outcome := d.process(ctx, phone, in)
	sendErr := d.send(ctx, phone, replies)

	metrics.RecordInboundMessage(outcome, time.Since(start))
	log.Debug().Str("outcome", outcome).Dur("duration", time.Since(start)).Msg("Message handled")
	return sendErr
}

func (d *Dispatcher) process(ctx context.Context, phone string, in Inbound) ([]string, string) {
	log := logger.WithContext(ctx)

	user, err := d.users.GetOrCreate(ctx, phone, in.Name)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load user")
		return []string{apologyText}, "error"
	}
	if user.Status != types.UserStatusActive {
		log.Info().Str("status", user.Status).Msg("Refusing message from inactive user")
		return []string{d.refusal()}, "rejected"
	}
	if d.config.MaintenanceMode {
		return []string{maintenanceText}, "maintenance"
	}

	sess, fresh, err := d.loadSession(ctx, phone)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load session")
		return []string{apologyText}, "error"
	}

	req := flow.Request{
		User:    *user,
		Session: sess,
		Input:   strings.TrimSpace(in.Text),
		MediaID: in.MediaID,
		Fresh:   fresh,
	}

	res, err := d.route(ctx, req)
	if err != nil {
		log.Error().Err(err).Str("flow", sess.Flow).Str("state", sess.State).Msg("Handler failed")
		return []string{apologyText}, "error"
	}

	if _, err := d.sessions.Save(ctx, res.Session); err != nil {
		log.Warn().Err(err).Msg("Failed to refresh session")
	}
	return res.Replies, "handled"
}

func (d *Dispatcher) refusal() string {
	if d.config.SupportContact == "" {
		return suspendedText
	}
	return fmt.Sprintf("%s\n\n📞 Support: %s", suspendedText, d.config.SupportContact)
}

func (d *Dispatcher) loadSession(ctx context.Context, phone string) (types.Session, bool, error) {
	sess, err := d.sessions.Get(ctx, phone)
	if err != nil {
		return types.Session{}, false, err
	}
	if sess == nil {
		return d.sessions.CreateDefault(phone), true, nil
	}
	return *sess, false, nil
}

func (d *Dispatcher) route(ctx context.Context, req flow.Request) (flow.Result, error) {
	sess := req.Session
	ctx, span := telemetry.StartFlowSpan(ctx, sess.Flow, sess.State)
	res, err := d.dispatch(ctx, req)
	telemetry.EndSpan(span, err)
	return res, err
}

func (d *Dispatcher) dispatch(ctx context.Context, req flow.Request) (flow.Result, error) {
	sess := req.Session

	if req.MediaID == "" && globalCommands[strings.ToLower(req.Input)] {
		if sess.State != types.StateMainMenu {
			reset, err := d.sessions.Reset(ctx, sess)
			if err != nil {
				return flow.Result{}, err
			}
			req.Session = reset
		}
		req.Input = "menu"
		return d.menu.Handle(ctx, req)
	}

	if sess.State == types.StateMainMenu {
		return d.menu.Handle(ctx, req)
	}

	h, ok := d.flows[sess.Flow]
	if !ok || !types.ValidState(sess.Flow, sess.State) {
		log := logger.WithContext(ctx)
		log.Warn().Str("flow", sess.Flow).Str("state", sess.State).Msg("Unknown session state, resetting")
		reset, err := d.sessions.Reset(ctx, sess)
		if err != nil {
			return flow.Result{}, err
		}
		req.Session = reset
		req.Input = "menu"
		return d.menu.Handle(ctx, req)
	}
	return h.Handle(ctx, req)
}

func (d *Dispatcher) send(ctx context.Context, phone string, replies []string) error {
	for _, text := range replies {
		if text == "" {
			continue
		}
		if _, err := d.messenger.Send(ctx, phone, text); err != nil {
			metrics.RecordOutboundMessage("error")
			return fmt.Errorf("failed to send reply: %w", err)
		}
		metrics.RecordOutboundMessage("sent")
	}
	return nil
}
