package handler

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// PushEnvelope is the body Pub/Sub push subscriptions deliver.
type PushEnvelope struct {
	Message struct {
		Data      string `json:"data"`
		MessageID string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// MailboxNotification is the payload Gmail publishes on mailbox changes.
type MailboxNotification struct {
	EmailAddress string `json:"emailAddress"`
	HistoryID    uint64 `json:"historyId"`
}

// PostGmailWebhook handles POST /webhooks/gmail. The notification only says
// the mailbox changed; it wakes the poller, which does the actual scan. A
// scan already queued absorbs further notifications.
func (s *Server) PostGmailWebhook(w http.ResponseWriter, r *http.Request) {
	var env PushEnvelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: malformed push envelope", errRequest))
		return
	}
	raw, err := base64.StdEncoding.DecodeString(env.Message.Data)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: message data is not base64", errRequest))
		return
	}
	var note MailboxNotification
	if err := json.Unmarshal(raw, &note); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: malformed mailbox notification", errRequest))
		return
	}

	queued := false
	if s.mailTrigger != nil {
		select {
		case s.mailTrigger <- struct{}{}:
			queued = true
		default:
		}
	}
	s.log.InfoContext(r.Context(), "mailbox notification",
		slog.String("message_id", env.Message.MessageID),
		slog.Uint64("history_id", note.HistoryID),
		slog.Bool("queued", queued),
	)
	w.WriteHeader(http.StatusNoContent)
}
