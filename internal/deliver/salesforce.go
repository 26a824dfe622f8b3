package deliver

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/callbrief-cli/internal/model"
	"github.com/sells-group/callbrief-cli/pkg/salesforce"
)

// CRMAttacher attaches briefs to Salesforce accounts as Notes.
type CRMAttacher struct {
	client salesforce.Client
}

// NewCRMAttacher creates an attacher over the given Salesforce client.
func NewCRMAttacher(client salesforce.Client) *CRMAttacher {
	return &CRMAttacher{client: client}
}

// Attach finds the CRM account matching the brief's display name and
// attaches the brief as a Note. It fails when no matching account
// exists; brief delivery never creates CRM accounts.
func (a *CRMAttacher) Attach(ctx context.Context, result *model.BriefResult) (string, error) {
	acct, err := salesforce.FindAccountByName(ctx, a.client, result.Account.DisplayName)
	if err != nil {
		return "", err
	}
	if acct == nil {
		return "", eris.Errorf("deliver: no CRM account named %q", result.Account.DisplayName)
	}

	noteID, err := salesforce.AttachNote(ctx, a.client, acct.ID, pageTitle(result), result.Markdown)
	if err != nil {
		return "", err
	}
	zap.L().Info("brief attached to crm account",
		zap.String("account", result.Account.DisplayName),
		zap.String("sf_account_id", acct.ID),
		zap.String("note_id", noteID),
	)
	return noteID, nil
}
