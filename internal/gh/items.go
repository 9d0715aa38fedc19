package gh

import (
	"context"
	"fmt"
	"time"

	"github.com/machinebox/graphql"

	"github.com/h0rv/ghpsync/internal/domain"
)

// ItemsPageSize is how many items FetchItems requests per page.
const ItemsPageSize = 50

const itemsQuery = `
	query($projectId: ID!, $first: Int!, $after: String) {
		node(id: $projectId) {
			... on ProjectV2 {
				items(first: $first, after: $after) {
					pageInfo {
						hasNextPage
						endCursor
					}
					nodes {
						id
						fieldValues(first: 30) {
							nodes {
								__typename
								... on ProjectV2ItemFieldTextValue {
									text
									field { ... on ProjectV2FieldCommon { name } }
								}
								... on ProjectV2ItemFieldNumberValue {
									number
									field { ... on ProjectV2FieldCommon { name } }
								}
								... on ProjectV2ItemFieldDateValue {
									date
									field { ... on ProjectV2FieldCommon { name } }
								}
								... on ProjectV2ItemFieldSingleSelectValue {
									name
									optionId
									field { ... on ProjectV2FieldCommon { name } }
								}
								... on ProjectV2ItemFieldIterationValue {
									title
									field { ... on ProjectV2FieldCommon { name } }
								}
							}
						}
						content {
							__typename
							... on Issue {
								id
								title
								body
								url
								number
								state
								createdAt
								updatedAt
								closedAt
								author { login }
								repository { nameWithOwner }
								milestone { title }
								comments { totalCount }
								reactions { totalCount }
								assignees(first: 10) { nodes { login avatarUrl } }
								labels(first: 20) { nodes { name } }
							}
							... on PullRequest {
								id
								title
								body
								url
								number
								state
								createdAt
								updatedAt
								closedAt
								isDraft
								merged
								reviewDecision
								additions
								deletions
								author { login }
								repository { nameWithOwner }
								milestone { title }
								comments { totalCount }
								reactions { totalCount }
								assignees(first: 10) { nodes { login avatarUrl } }
								labels(first: 20) { nodes { name } }
								reviewRequests(first: 10) {
									nodes {
										requestedReviewer {
											... on User { login }
											... on Team { name }
										}
									}
								}
								commits(last: 1) {
									nodes { commit { statusCheckRollup { state } } }
								}
							}
							... on DraftIssue {
								id
								title
								body
								createdAt
								updatedAt
								assignees(first: 10) { nodes { login avatarUrl } }
							}
						}
					}
				}
			}
		}
	}
`

type fieldValueNode struct {
	Typename string   `json:"__typename"`
	Text     *string  `json:"text"`
	Number   *float64 `json:"number"`
	Date     *string  `json:"date"`
	Name     *string  `json:"name"`
	OptionID string   `json:"optionId"`
	Title    *string  `json:"title"`
	Field    *struct {
		Name string `json:"name"`
	} `json:"field"`
}

type contentNode struct {
	Typename       string    `json:"__typename"`
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Body           string    `json:"body"`
	URL            string    `json:"url"`
	Number         int       `json:"number"`
	State          string    `json:"state"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
	ClosedAt       time.Time `json:"closedAt"`
	IsDraft        bool      `json:"isDraft"`
	Merged         bool      `json:"merged"`
	ReviewDecision string    `json:"reviewDecision"`
	Additions      int       `json:"additions"`
	Deletions      int       `json:"deletions"`
	Author         *struct {
		Login string `json:"login"`
	} `json:"author"`
	Repository *struct {
		NameWithOwner string `json:"nameWithOwner"`
	} `json:"repository"`
	Milestone *struct {
		Title string `json:"title"`
	} `json:"milestone"`
	Comments *struct {
		TotalCount int `json:"totalCount"`
	} `json:"comments"`
	Reactions *struct {
		TotalCount int `json:"totalCount"`
	} `json:"reactions"`
	Assignees *struct {
		Nodes []struct {
			Login     string `json:"login"`
			AvatarURL string `json:"avatarUrl"`
		} `json:"nodes"`
	} `json:"assignees"`
	Labels *struct {
		Nodes []struct {
			Name string `json:"name"`
		} `json:"nodes"`
	} `json:"labels"`
	ReviewRequests *struct {
		Nodes []struct {
			RequestedReviewer *struct {
				Login string `json:"login"`
				Name  string `json:"name"`
			} `json:"requestedReviewer"`
		} `json:"nodes"`
	} `json:"reviewRequests"`
	Commits *struct {
		Nodes []struct {
			Commit struct {
				StatusCheckRollup *struct {
					State string `json:"state"`
				} `json:"statusCheckRollup"`
			} `json:"commit"`
		} `json:"nodes"`
	} `json:"commits"`
}

type itemNode struct {
	ID          string `json:"id"`
	FieldValues struct {
		Nodes []fieldValueNode `json:"nodes"`
	} `json:"fieldValues"`
	Content *contentNode `json:"content"`
}

// FetchItems fetches one page of project items starting after cursor.
// Pass an empty cursor for the first page.
func (c *Client) FetchItems(ctx context.Context, projectID string, cursor string) (domain.ItemPage, error) {
	req := graphql.NewRequest(itemsQuery)
	req.Var("projectId", projectID)
	req.Var("first", ItemsPageSize)
	if cursor != "" {
		req.Var("after", cursor)
	} else {
		req.Var("after", nil)
	}

	var resp struct {
		Node *struct {
			Items *struct {
				PageInfo struct {
					HasNextPage bool   `json:"hasNextPage"`
					EndCursor   string `json:"endCursor"`
				} `json:"pageInfo"`
				Nodes []itemNode `json:"nodes"`
			} `json:"items"`
		} `json:"node"`
	}

	if err := c.makeRequest(ctx, req, &resp); err != nil {
		return domain.ItemPage{}, fmt.Errorf("failed to get items: %w", err)
	}
	if resp.Node == nil || resp.Node.Items == nil {
		return domain.ItemPage{}, fmt.Errorf("failed to get items for project %s: %w", projectID, ErrEmptyResult)
	}

	items := make([]*domain.Item, 0, len(resp.Node.Items.Nodes))
	for _, node := range resp.Node.Items.Nodes {
		items = append(items, node.toDomain())
	}

	return domain.ItemPage{
		Items:       items,
		EndCursor:   resp.Node.Items.PageInfo.EndCursor,
		HasNextPage: resp.Node.Items.PageInfo.HasNextPage,
	}, nil
}

// FetchAllItems follows pagination until every item of the project is loaded.
func (c *Client) FetchAllItems(ctx context.Context, projectID string) ([]*domain.Item, error) {
	var all []*domain.Item
	cursor := ""
	for {
		page, err := c.FetchItems(ctx, projectID, cursor)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Items...)
		if !page.HasNextPage || page.EndCursor == "" {
			return all, nil
		}
		cursor = page.EndCursor
	}
}

func (n itemNode) toDomain() *domain.Item {
	item := &domain.Item{
		ID:          n.ID,
		FieldValues: make(map[string]domain.FieldValue, len(n.FieldValues.Nodes)),
	}

	for _, fv := range n.FieldValues.Nodes {
		if fv.Field == nil || fv.Field.Name == "" {
			continue
		}
		if value, ok := fv.toDomain(); ok {
			item.FieldValues[fv.Field.Name] = value
		}
	}

	// Handle content union (Issue/PR/Draft/null)
	if n.Content == nil {
		// Null content (private or deleted item)
		item.Type = domain.ItemTypePrivate
		item.Title = "(private item)"
		return item
	}

	content := n.Content
	switch content.Typename {
	case "Issue":
		item.Type = domain.ItemTypeIssue
	case "PullRequest":
		item.Type = domain.ItemTypePullRequest
	case "DraftIssue":
		item.Type = domain.ItemTypeDraftIssue
	default:
		// Unknown type - treat as private
		item.Type = domain.ItemTypePrivate
		item.Title = "(unknown item type)"
		return item
	}

	item.Title = content.Title
	item.Body = content.Body
	item.CreatedAt = content.CreatedAt
	item.UpdatedAt = content.UpdatedAt

	if content.Assignees != nil {
		item.Assignees = make([]domain.Assignee, 0, len(content.Assignees.Nodes))
		for _, a := range content.Assignees.Nodes {
			item.Assignees = append(item.Assignees, domain.Assignee{Login: a.Login, AvatarURL: a.AvatarURL})
		}
	}

	// Drafts have no underlying issue to mutate
	if item.Type == domain.ItemTypeDraftIssue {
		return item
	}

	item.ContentID = content.ID
	item.URL = content.URL
	item.Number = content.Number
	item.State = content.State
	item.ClosedAt = content.ClosedAt
	if content.Author != nil {
		item.Author = content.Author.Login
	}
	if content.Repository != nil {
		item.Repo = content.Repository.NameWithOwner
	}
	if content.Milestone != nil {
		item.Milestone = content.Milestone.Title
	}
	if content.Comments != nil {
		item.CommentCount = content.Comments.TotalCount
	}
	if content.Reactions != nil {
		item.ReactionCount = content.Reactions.TotalCount
	}
	if content.Labels != nil {
		item.Labels = make([]string, 0, len(content.Labels.Nodes))
		for _, l := range content.Labels.Nodes {
			item.Labels = append(item.Labels, l.Name)
		}
	}

	if item.Type == domain.ItemTypePullRequest {
		pr := &domain.PullRequestDetails{
			Draft:          content.IsDraft,
			Merged:         content.Merged,
			ReviewDecision: content.ReviewDecision,
			Additions:      content.Additions,
			Deletions:      content.Deletions,
		}
		if content.ReviewRequests != nil {
			for _, rr := range content.ReviewRequests.Nodes {
				if rr.RequestedReviewer == nil {
					continue
				}
				reviewer := rr.RequestedReviewer.Login
				if reviewer == "" {
					reviewer = rr.RequestedReviewer.Name
				}
				pr.Reviewers = append(pr.Reviewers, reviewer)
			}
		}
		if content.Commits != nil && len(content.Commits.Nodes) > 0 {
			if rollup := content.Commits.Nodes[0].Commit.StatusCheckRollup; rollup != nil {
				pr.CIStatus = rollup.State
			}
		}
		item.PR = pr
	}

	return item
}

// toDomain converts a field value node into the matching FieldValue variant.
func (fv fieldValueNode) toDomain() (domain.FieldValue, bool) {
	switch fv.Typename {
	case "ProjectV2ItemFieldTextValue":
		if fv.Text == nil {
			return domain.FieldValue{}, false
		}
		return domain.TextValue(*fv.Text), true
	case "ProjectV2ItemFieldNumberValue":
		if fv.Number == nil {
			return domain.FieldValue{}, false
		}
		return domain.NumberValue(*fv.Number), true
	case "ProjectV2ItemFieldDateValue":
		if fv.Date == nil {
			return domain.FieldValue{}, false
		}
		t, err := time.Parse(time.DateOnly, *fv.Date)
		if err != nil {
			return domain.FieldValue{}, false
		}
		return domain.DateValue(t), true
	case "ProjectV2ItemFieldSingleSelectValue":
		if fv.Name == nil {
			return domain.FieldValue{}, false
		}
		return domain.SingleSelectValue(*fv.Name, fv.OptionID), true
	case "ProjectV2ItemFieldIterationValue":
		// Iterations are shown by title
		if fv.Title == nil {
			return domain.FieldValue{}, false
		}
		return domain.TextValue(*fv.Title), true
	default:
		return domain.FieldValue{}, false
	}
}
