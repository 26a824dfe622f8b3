// Package deliver publishes finished briefs to external destinations:
// a Notion database and Salesforce account notes.
package deliver

import (
	"context"
	"fmt"
	"strings"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/callbrief-cli/internal/model"
	"github.com/sells-group/callbrief-cli/pkg/notion"
)

// Notion's rich text blocks cap out at 2000 characters.
const notionBlockLimit = 2000

// NotionPublisher writes briefs into a Notion database, one page per
// account. Re-publishing an account archives nothing; it creates a new
// page so history is preserved.
type NotionPublisher struct {
	client notion.Client
	dbID   string
}

// NewNotionPublisher creates a publisher for the given briefs database.
func NewNotionPublisher(client notion.Client, dbID string) (*NotionPublisher, error) {
	if dbID == "" {
		return nil, eris.New("deliver: notion brief database id is required")
	}
	return &NotionPublisher{client: client, dbID: dbID}, nil
}

// Publish creates a page for the brief and returns its Notion page ID.
func (p *NotionPublisher) Publish(ctx context.Context, result *model.BriefResult) (string, error) {
	req := &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(p.dbID),
		},
		Properties: notionapi.Properties{
			"Name": notionapi.TitleProperty{
				Title: []notionapi.RichText{{
					Text: &notionapi.Text{Content: result.Account.DisplayName},
				}},
			},
			"Calls": notionapi.NumberProperty{
				Number: float64(result.CallCount),
			},
			"Generated": notionapi.DateProperty{
				Date: &notionapi.DateObject{
					Start: (*notionapi.Date)(&result.GeneratedAt),
				},
			},
		},
		Children: markdownBlocks(result.Markdown),
	}

	page, err := p.client.CreatePage(ctx, req)
	if err != nil {
		return "", eris.Wrapf(err, "deliver: publish brief for %s", result.Account.DisplayName)
	}
	zap.L().Info("brief published to notion",
		zap.String("account", result.Account.DisplayName),
		zap.String("page_id", string(page.ID)),
	)
	return string(page.ID), nil
}

// markdownBlocks converts brief markdown into paragraph blocks, keeping
// each block under Notion's rich text limit. Headings keep their
// markdown prefixes; the page is a faithful transcript of the brief,
// not a re-rendering.
func markdownBlocks(markdown string) []notionapi.Block {
	var blocks []notionapi.Block
	for _, para := range strings.Split(markdown, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		for _, chunk := range splitChunks(para, notionBlockLimit) {
			blocks = append(blocks, &notionapi.ParagraphBlock{
				BasicBlock: notionapi.BasicBlock{
					Object: notionapi.ObjectTypeBlock,
					Type:   notionapi.BlockTypeParagraph,
				},
				Paragraph: notionapi.Paragraph{
					RichText: []notionapi.RichText{{
						Text: &notionapi.Text{Content: chunk},
					}},
				},
			})
		}
	}
	return blocks
}

func splitChunks(s string, limit int) []string {
	if len(s) <= limit {
		return []string{s}
	}
	var chunks []string
	for len(s) > limit {
		cut := limit
		// Prefer breaking at a newline or space near the limit.
		if i := strings.LastIndexAny(s[:limit], "\n "); i > limit/2 {
			cut = i + 1
		}
		chunks = append(chunks, s[:cut])
		s = s[cut:]
	}
	if s != "" {
		chunks = append(chunks, s)
	}
	return chunks
}

// pageTitle is the note/page title used for a published brief.
func pageTitle(result *model.BriefResult) string {
	return fmt.Sprintf("Account brief: %s (%s)",
		result.Account.DisplayName, result.GeneratedAt.Format("2006-01-02"))
}
