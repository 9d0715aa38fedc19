package gh

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/machinebox/graphql"
	"golang.org/x/sync/errgroup"

	"github.com/h0rv/ghpsync/internal/domain"
)

// OwnerType represents whether an owner is an organization or user.
type OwnerType string

const (
	OwnerTypeOrganization OwnerType = "Organization"
	OwnerTypeUser         OwnerType = "User"
)

// Owner represents an owner (user or organization) that can have projects.
type Owner struct {
	Login string
	ID    string
	Type  OwnerType
}

// ListOwners returns the authenticated user followed by their organizations.
func (c *Client) ListOwners(ctx context.Context) ([]Owner, error) {
	req := graphql.NewRequest(`
		query {
			viewer {
				login
				id
				organizations(first: 100) {
					nodes {
						login
						id
					}
				}
			}
		}
	`)

	var resp struct {
		Viewer *struct {
			Login         string `json:"login"`
			ID            string `json:"id"`
			Organizations struct {
				Nodes []struct {
					Login string `json:"login"`
					ID    string `json:"id"`
				} `json:"nodes"`
			} `json:"organizations"`
		} `json:"viewer"`
	}

	if err := c.makeRequest(ctx, req, &resp); err != nil {
		return nil, fmt.Errorf("failed to get viewer and orgs: %w", err)
	}
	if resp.Viewer == nil {
		return nil, fmt.Errorf("failed to get viewer and orgs: %w", ErrEmptyResult)
	}

	owners := make([]Owner, 0, 1+len(resp.Viewer.Organizations.Nodes))
	owners = append(owners, Owner{
		Login: resp.Viewer.Login,
		ID:    resp.Viewer.ID,
		Type:  OwnerTypeUser,
	})
	for _, org := range resp.Viewer.Organizations.Nodes {
		owners = append(owners, Owner{
			Login: org.Login,
			ID:    org.ID,
			Type:  OwnerTypeOrganization,
		})
	}

	return owners, nil
}

// ResolveOwner determines if a login is an organization or user.
// GitHub answers a lookup for the wrong kind with a NOT_FOUND error, so the
// organization lookup is tried first and the user lookup second.
func (c *Client) ResolveOwner(ctx context.Context, login string) (Owner, error) {
	for _, ownerType := range []OwnerType{OwnerTypeOrganization, OwnerTypeUser} {
		id, err := c.lookupOwnerID(ctx, ownerType, login)
		if err == nil {
			return Owner{Login: login, ID: id, Type: ownerType}, nil
		}
		var pe *ProtocolError
		if !errors.As(err, &pe) && !errors.Is(err, ErrEmptyResult) {
			return Owner{}, fmt.Errorf("failed to resolve owner: %w", err)
		}
	}
	return Owner{}, fmt.Errorf("login '%s' not found (neither organization nor user): %w", login, ErrEmptyResult)
}

func (c *Client) lookupOwnerID(ctx context.Context, ownerType OwnerType, login string) (string, error) {
	field := "user"
	if ownerType == OwnerTypeOrganization {
		field = "organization"
	}
	req := graphql.NewRequest(fmt.Sprintf(`
		query($login: String!) {
			owner: %s(login: $login) {
				id
			}
		}
	`, field))
	req.Var("login", login)

	var resp struct {
		Owner *struct {
			ID string `json:"id"`
		} `json:"owner"`
	}
	if err := c.makeRequest(ctx, req, &resp); err != nil {
		return "", err
	}
	if resp.Owner == nil {
		return "", ErrEmptyResult
	}
	return resp.Owner.ID, nil
}

// ListProjects lists the projects of one owner.
func (c *Client) ListProjects(ctx context.Context, owner Owner) ([]domain.Project, error) {
	req := graphql.NewRequest(fmt.Sprintf(`
		query($id: ID!, $first: Int!) {
			node(id: $id) {
				... on %s {
					projectsV2(first: $first) {
						nodes {
							id
							number
							title
							url
						}
					}
				}
			}
		}
	`, owner.Type))
	req.Var("id", owner.ID)
	req.Var("first", 100)

	var resp struct {
		Node *struct {
			ProjectsV2 struct {
				Nodes []struct {
					ID     string `json:"id"`
					Number int    `json:"number"`
					Title  string `json:"title"`
					URL    string `json:"url"`
				} `json:"nodes"`
			} `json:"projectsV2"`
		} `json:"node"`
	}

	if err := c.makeRequest(ctx, req, &resp); err != nil {
		return nil, fmt.Errorf("failed to list projects for %s: %w", owner.Login, err)
	}
	if resp.Node == nil {
		return nil, fmt.Errorf("failed to list projects for %s: %w", owner.Login, ErrEmptyResult)
	}

	projects := make([]domain.Project, 0, len(resp.Node.ProjectsV2.Nodes))
	for _, node := range resp.Node.ProjectsV2.Nodes {
		projects = append(projects, domain.Project{
			ID:     node.ID,
			Number: node.Number,
			Title:  node.Title,
			URL:    node.URL,
			Owner:  owner.Login,
		})
	}

	return projects, nil
}

// ProjectsResult collects the outcome of listing projects across owners.
type ProjectsResult struct {
	Projects []domain.Project // Successful owners' projects, in owner order
	Failed   map[string]error // Owner login -> error
}

// Err joins the per-owner failures, or returns nil if every owner succeeded.
func (r ProjectsResult) Err() error {
	errs := make([]error, 0, len(r.Failed))
	for _, err := range r.Failed {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ListProjectsForOwners lists projects for several owners concurrently.
// One owner's failure is recorded in the result and does not affect the others.
func (c *Client) ListProjectsForOwners(ctx context.Context, owners []Owner) ProjectsResult {
	perOwner := make([][]domain.Project, len(owners))
	failed := make(map[string]error)
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(4)
	for i, owner := range owners {
		g.Go(func() error {
			projects, err := c.ListProjects(ctx, owner)
			if err != nil {
				mu.Lock()
				failed[owner.Login] = err
				mu.Unlock()
				return nil
			}
			perOwner[i] = projects
			return nil
		})
	}
	_ = g.Wait()

	result := ProjectsResult{Failed: failed}
	for _, projects := range perOwner {
		result.Projects = append(result.Projects, projects...)
	}
	return result
}

// projectFieldsFragment selects every field kind with its options.
const projectFieldsFragment = `
	fields(first: 50) {
		nodes {
			... on ProjectV2Field {
				id
				name
				dataType
			}
			... on ProjectV2SingleSelectField {
				id
				name
				dataType
				options {
					id
					name
					color
				}
			}
			... on ProjectV2IterationField {
				id
				name
				dataType
			}
		}
	}
`

type projectNode struct {
	ID     string `json:"id"`
	Number int    `json:"number"`
	Title  string `json:"title"`
	URL    string `json:"url"`
	Owner  *struct {
		Login string `json:"login"`
	} `json:"owner"`
	Fields struct {
		Nodes []struct {
			ID       string `json:"id"`
			Name     string `json:"name"`
			DataType string `json:"dataType"`
			Options  []struct {
				ID    string `json:"id"`
				Name  string `json:"name"`
				Color string `json:"color"`
			} `json:"options"`
		} `json:"nodes"`
	} `json:"fields"`
}

func (n *projectNode) toDomain() *domain.Project {
	project := &domain.Project{
		ID:     n.ID,
		Number: n.Number,
		Title:  n.Title,
		URL:    n.URL,
		Fields: make([]domain.Field, 0, len(n.Fields.Nodes)),
	}
	if n.Owner != nil {
		project.Owner = n.Owner.Login
	}

	for _, node := range n.Fields.Nodes {
		// Fields of kinds not selected above decode as empty objects.
		if node.ID == "" {
			continue
		}
		field := domain.Field{
			ID:   node.ID,
			Name: node.Name,
			Kind: fieldKind(node.DataType),
		}
		// The API returns options in their configured order
		for _, opt := range node.Options {
			field.Options = append(field.Options, domain.Option{
				ID:    opt.ID,
				Name:  opt.Name,
				Color: opt.Color,
			})
		}
		project.Fields = append(project.Fields, field)
	}
	return project
}

// fieldKind maps the GraphQL ProjectV2FieldType to a domain kind.
func fieldKind(dataType string) domain.FieldKind {
	switch dataType {
	case "SINGLE_SELECT":
		return domain.FieldKindSingleSelect
	case "NUMBER":
		return domain.FieldKindNumber
	case "DATE":
		return domain.FieldKindDate
	case "ITERATION":
		return domain.FieldKindIteration
	default:
		return domain.FieldKindText
	}
}

// GetProject fetches a project and its fields by owner and number.
func (c *Client) GetProject(ctx context.Context, owner Owner, number int) (*domain.Project, error) {
	req := graphql.NewRequest(fmt.Sprintf(`
		query($id: ID!, $number: Int!) {
			node(id: $id) {
				... on %s {
					projectV2(number: $number) {
						id
						number
						title
						url
						owner {
							... on Organization { login }
							... on User { login }
						}
						%s
					}
				}
			}
		}
	`, owner.Type, projectFieldsFragment))
	req.Var("id", owner.ID)
	req.Var("number", number)

	var resp struct {
		Node *struct {
			ProjectV2 *projectNode `json:"projectV2"`
		} `json:"node"`
	}

	if err := c.makeRequest(ctx, req, &resp); err != nil {
		return nil, fmt.Errorf("failed to get project %s/%d: %w", owner.Login, number, err)
	}
	if resp.Node == nil || resp.Node.ProjectV2 == nil {
		return nil, fmt.Errorf("failed to get project %s/%d: %w", owner.Login, number, ErrEmptyResult)
	}

	return resp.Node.ProjectV2.toDomain(), nil
}

// GetProjectByID fetches a project and its fields by node ID.
func (c *Client) GetProjectByID(ctx context.Context, projectID string) (*domain.Project, error) {
	req := graphql.NewRequest(fmt.Sprintf(`
		query($projectId: ID!) {
			node(id: $projectId) {
				... on ProjectV2 {
					id
					number
					title
					url
					owner {
						... on Organization { login }
						... on User { login }
					}
					%s
				}
			}
		}
	`, projectFieldsFragment))
	req.Var("projectId", projectID)

	var resp struct {
		Node *projectNode `json:"node"`
	}

	if err := c.makeRequest(ctx, req, &resp); err != nil {
		return nil, fmt.Errorf("failed to get project fields: %w", err)
	}
	if resp.Node == nil || resp.Node.ID == "" {
		return nil, fmt.Errorf("failed to get project %s: %w", projectID, ErrEmptyResult)
	}

	return resp.Node.toDomain(), nil
}
