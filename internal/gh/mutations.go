package gh

import (
	"context"
	"fmt"
	"time"

	"github.com/machinebox/graphql"

	"github.com/h0rv/ghpsync/internal/domain"
)

const updateFieldValueMutation = `
	mutation($projectId: ID!, $itemId: ID!, $fieldId: ID!, $value: ProjectV2FieldValue!) {
		updateProjectV2ItemFieldValue(
			input: {
				projectId: $projectId
				itemId: $itemId
				fieldId: $fieldId
				value: $value
			}
		) {
			projectV2Item {
				id
			}
		}
	}
`

type updateFieldValueResponse struct {
	UpdateProjectV2ItemFieldValue *struct {
		ProjectV2Item *struct {
			ID string `json:"id"`
		} `json:"projectV2Item"`
	} `json:"updateProjectV2ItemFieldValue"`
}

// UpdateSingleSelectField sets a project item's single-select field to an option.
// This is used to move items between columns in the board view.
func (c *Client) UpdateSingleSelectField(ctx context.Context, projectID, itemID, fieldID, optionID string) error {
	return c.updateFieldValue(ctx, projectID, itemID, fieldID, map[string]interface{}{
		"singleSelectOptionId": optionID,
	})
}

// UpdateFieldValue sets a text, number or date field on a project item.
func (c *Client) UpdateFieldValue(ctx context.Context, projectID, itemID, fieldID string, value domain.FieldValue) error {
	var input map[string]interface{}
	switch value.Kind() {
	case domain.FieldKindText:
		input = map[string]interface{}{"text": value.Text()}
	case domain.FieldKindNumber:
		input = map[string]interface{}{"number": value.Number()}
	case domain.FieldKindDate:
		input = map[string]interface{}{"date": value.Date().Format(time.DateOnly)}
	case domain.FieldKindSingleSelect:
		input = map[string]interface{}{"singleSelectOptionId": value.OptionID()}
	default:
		return fmt.Errorf("cannot update field %s with an empty value", fieldID)
	}
	return c.updateFieldValue(ctx, projectID, itemID, fieldID, input)
}

func (c *Client) updateFieldValue(ctx context.Context, projectID, itemID, fieldID string, value map[string]interface{}) error {
	req := graphql.NewRequest(updateFieldValueMutation)
	req.Var("projectId", projectID)
	req.Var("itemId", itemID)
	req.Var("fieldId", fieldID)
	req.Var("value", value)

	var resp updateFieldValueResponse
	if err := c.makeRequest(ctx, req, &resp); err != nil {
		return fmt.Errorf("failed to update item field: %w", err)
	}
	if resp.UpdateProjectV2ItemFieldValue == nil || resp.UpdateProjectV2ItemFieldValue.ProjectV2Item == nil {
		return fmt.Errorf("failed to update item field: %w", ErrEmptyResult)
	}

	return nil
}

// ClearFieldValue removes a field's value from a project item.
func (c *Client) ClearFieldValue(ctx context.Context, projectID, itemID, fieldID string) error {
	req := graphql.NewRequest(`
		mutation($projectId: ID!, $itemId: ID!, $fieldId: ID!) {
			clearProjectV2ItemFieldValue(
				input: {projectId: $projectId, itemId: $itemId, fieldId: $fieldId}
			) {
				projectV2Item {
					id
				}
			}
		}
	`)
	req.Var("projectId", projectID)
	req.Var("itemId", itemID)
	req.Var("fieldId", fieldID)

	var resp struct {
		ClearProjectV2ItemFieldValue *struct {
			ProjectV2Item *struct {
				ID string `json:"id"`
			} `json:"projectV2Item"`
		} `json:"clearProjectV2ItemFieldValue"`
	}
	if err := c.makeRequest(ctx, req, &resp); err != nil {
		return fmt.Errorf("failed to clear item field: %w", err)
	}
	if resp.ClearProjectV2ItemFieldValue == nil {
		return fmt.Errorf("failed to clear item field: %w", ErrEmptyResult)
	}

	return nil
}
