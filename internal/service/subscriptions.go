package service

import (
	"context"
	"encoding/json"
	"log"

	"github.com/rouletka/roulette/internal/messaging"
	"github.com/rouletka/roulette/internal/participant"
)

// Wire forms of the inbound NATS commands.

type pairRequest struct {
	ParticipantID string   `json:"participant_id"`
	Language      string   `json:"language,omitempty"`
	AgeGroups     []string `json:"age_groups,omitempty"`
	Countries     []string `json:"countries,omitempty"`
	OnlyNew       bool     `json:"only_new,omitempty"`
}

type pairCancel struct {
	ParticipantID string `json:"participant_id"`
}

type chatSend struct {
	SessionID string `json:"session_id"`
	SenderID  string `json:"sender_id"`
	Text      string `json:"text"`
}

type chatEnd struct {
	SessionID     string `json:"session_id"`
	ParticipantID string `json:"participant_id"`
}

type chatRate struct {
	SessionID string `json:"session_id"`
	RaterID   string `json:"rater_id"`
	Rating    int    `json:"rating"`
}

type reportFile struct {
	SessionID  string `json:"session_id"`
	ReporterID string `json:"reporter_id"`
	ReportedID string `json:"reported_id"`
	Reason     string `json:"reason"`
}

// BindSubscriptions subscribes the service to its inbound command subjects.
// Command failures are logged; there is no reply channel, the caller learns
// outcomes through their notify subject.
func (r *Roulette) BindSubscriptions(ctx context.Context, client *messaging.Client) error {
	handlers := map[string]func(data []byte){
		messaging.SubjectPairRequest: func(data []byte) {
			var req pairRequest
			if !decode(messaging.SubjectPairRequest, data, &req) {
				return
			}
			filters := participant.Filters{
				Language:  req.Language,
				AgeGroups: req.AgeGroups,
				Countries: req.Countries,
				OnlyNew:   req.OnlyNew,
			}
			if err := r.RequestPairing(ctx, req.ParticipantID, filters); err != nil {
				log.Printf("[service] pair request %s: %v", req.ParticipantID, err)
			}
		},
		messaging.SubjectPairCancel: func(data []byte) {
			var req pairCancel
			if !decode(messaging.SubjectPairCancel, data, &req) {
				return
			}
			if err := r.CancelPairing(ctx, req.ParticipantID); err != nil {
				log.Printf("[service] pair cancel %s: %v", req.ParticipantID, err)
			}
		},
		messaging.SubjectChatSend: func(data []byte) {
			var req chatSend
			if !decode(messaging.SubjectChatSend, data, &req) {
				return
			}
			if _, err := r.SendMessage(ctx, req.SessionID, req.SenderID, req.Text); err != nil {
				log.Printf("[service] chat send %s in %s: %v", req.SenderID, req.SessionID, err)
			}
		},
		messaging.SubjectChatEnd: func(data []byte) {
			var req chatEnd
			if !decode(messaging.SubjectChatEnd, data, &req) {
				return
			}
			if err := r.EndSession(ctx, req.SessionID, req.ParticipantID); err != nil {
				log.Printf("[service] chat end %s by %s: %v", req.SessionID, req.ParticipantID, err)
			}
		},
		messaging.SubjectChatRate: func(data []byte) {
			var req chatRate
			if !decode(messaging.SubjectChatRate, data, &req) {
				return
			}
			if err := r.Rate(ctx, req.SessionID, req.RaterID, req.Rating); err != nil {
				log.Printf("[service] rate %s by %s: %v", req.SessionID, req.RaterID, err)
			}
		},
		messaging.SubjectReportFile: func(data []byte) {
			var req reportFile
			if !decode(messaging.SubjectReportFile, data, &req) {
				return
			}
			if _, err := r.FileReport(ctx, req.SessionID, req.ReporterID, req.ReportedID, req.Reason); err != nil {
				log.Printf("[service] report %s -> %s: %v", req.ReporterID, req.ReportedID, err)
			}
		},
	}

	for subject, handler := range handlers {
		if err := client.Subscribe(subject, handler); err != nil {
			return err
		}
	}
	return nil
}

func decode(subject string, data []byte, v any) bool {
	if err := json.Unmarshal(data, v); err != nil {
		log.Printf("[service] bad payload on %s: %v", subject, err)
		return false
	}
	return true
}
