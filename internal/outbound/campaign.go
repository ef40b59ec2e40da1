package outbound

import (
	"context"
	"fmt"
	"strings"
	"time"

	"crescoflow/internal/leads/domain"
	"crescoflow/platform/apperr"
	"crescoflow/platform/logger"

	"github.com/google/uuid"
)

// CampaignUploader adds leads to an email campaign of an external sequencer.
type CampaignUploader interface {
	UploadLeads(ctx context.Context, campaignID string, leads []domain.Lead) (int, error)
}

// CampaignStore is the part of the lead store campaign uploads touch.
type CampaignStore interface {
	Lead(id string) (domain.Lead, bool)
	UpdateLead(ctx context.Context, id string, fn func(*domain.Lead) error) (domain.Lead, error)
}

// UploadResult reports one campaign upload.
type UploadResult struct {
	CampaignID string `json:"campaignId,omitempty"`
	Requested  int    `json:"requested"`
	Uploaded   int    `json:"uploaded"`
	Skipped    int    `json:"skipped"`
}

// Campaigns hands cold email leads to the sequencer instead of the SMTP queue.
type Campaigns struct {
	uploader CampaignUploader
	store    CampaignStore
	log      *logger.Logger
	now      func() time.Time
}

func NewCampaigns(uploader CampaignUploader, store CampaignStore, log *logger.Logger) *Campaigns {
	return &Campaigns{uploader: uploader, store: store, log: log, now: time.Now}
}

// Upload sends the given leads to campaignID (empty uses the configured
// default). Leads without an email address or archived ones are skipped.
// Uploaded leads count as contacted by email.
func (c *Campaigns) Upload(ctx context.Context, campaignID string, ids []string) (UploadResult, error) {
	res := UploadResult{CampaignID: campaignID, Requested: len(ids)}

	var batch []domain.Lead
	for _, id := range ids {
		l, ok := c.store.Lead(id)
		if !ok {
			return UploadResult{}, apperr.NotFound("lead not found: " + id)
		}
		if l.Archived || !strings.Contains(l.PrimaryEmail(), "@") {
			res.Skipped++
			continue
		}
		batch = append(batch, l)
	}
	if len(batch) == 0 {
		return res, nil
	}

	n, err := c.uploader.UploadLeads(ctx, campaignID, batch)
	if err != nil {
		return UploadResult{}, apperr.Wrap(apperr.KindUnavailable, "campaign upload failed", err)
	}
	res.Uploaded = n
	res.Skipped += len(batch) - n

	at := c.now()
	for _, l := range batch {
		if _, err := c.store.UpdateLead(ctx, l.ID, func(lead *domain.Lead) error {
			lead.Interactions = append(lead.Interactions, domain.Interaction{
				ID:        uuid.NewString(),
				Type:      domain.InteractionEmail,
				Timestamp: at,
				Outcome:   fmt.Sprintf("toegevoegd aan campagne %s", campaignLabel(campaignID)),
			})
			lead.OutboundChannel = domain.ChannelColdEmail
			lead.EmailSentAt = &at
			if lead.PipelineTag == domain.StageCold || lead.PipelineTag == domain.StageReactivation {
				lead.PipelineTag = domain.StageSent
			}
			return nil
		}); err != nil {
			c.log.Warn("campaign lead update failed", "lead", l.ID, "error", err)
		}
	}
	c.log.Info("leads uploaded to campaign", "campaign", campaignLabel(campaignID), "uploaded", n)
	return res, nil
}

func campaignLabel(id string) string {
	if id == "" {
		return "standaard"
	}
	return id
}
