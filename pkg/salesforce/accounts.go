package salesforce

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Account represents the subset of a Salesforce Account record used
// when attaching briefs.
type Account struct {
	ID      string `json:"Id" salesforce:"Id"`
	Name    string `json:"Name" salesforce:"Name"`
	Website string `json:"Website" salesforce:"Website"`
}

// FindAccountByName queries Salesforce for an Account with the given name.
// Returns nil if no account is found.
func FindAccountByName(ctx context.Context, c Client, name string) (*Account, error) {
	soql := fmt.Sprintf(
		"SELECT Id, Name, Website FROM Account WHERE Name = '%s' LIMIT 1",
		escapeSoql(name),
	)

	var accounts []Account
	if err := c.Query(ctx, soql, &accounts); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("sf: find account by name %s", name))
	}
	if len(accounts) == 0 {
		return nil, nil
	}
	return &accounts[0], nil
}

// AttachNote creates a Note on the given Account and returns the new
// Salesforce ID.
func AttachNote(ctx context.Context, c Client, accountID, title, body string) (string, error) {
	if accountID == "" {
		return "", eris.New("sf: account id is required")
	}
	id, err := c.InsertOne(ctx, "Note", map[string]any{
		"ParentId": accountID,
		"Title":    title,
		"Body":     body,
	})
	if err != nil {
		return "", eris.Wrap(err, fmt.Sprintf("sf: attach note to account %s", accountID))
	}
	return id, nil
}

// escapeSoql escapes single quotes in SOQL string literals to prevent injection.
func escapeSoql(s string) string {
	return strings.ReplaceAll(s, "'", "\\'")
}
