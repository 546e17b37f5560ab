package hubspot

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Contact is the slice of a HubSpot contact this client cares about.
type Contact struct {
	ID         string            `mapstructure:"id"`
	Properties map[string]string `mapstructure:"properties"`
}

type searchResponse struct {
	Total   int                      `json:"total"`
	Results []map[string]interface{} `json:"results"`
}

// SearchContactByEmail returns the first contact with the given email, or
// nil when none exists.
func (c *Client) SearchContactByEmail(email string) (*Contact, error) {
	payload := map[string]interface{}{
		"filterGroups": []map[string]interface{}{{
			"filters": []map[string]string{{
				"propertyName": "email",
				"operator":     "EQ",
				"value":        email,
			}},
		}},
	}

	var response searchResponse
	if err := c.postJSON("/crm/v3/objects/contacts/search", payload, &response); err != nil {
		return nil, fmt.Errorf("search contact: %w", err)
	}

	if response.Total == 0 || len(response.Results) == 0 {
		return nil, nil
	}

	var contact Contact
	if err := mapstructure.Decode(response.Results[0], &contact); err != nil {
		return nil, fmt.Errorf("decode contact: %w", err)
	}

	return &contact, nil
}

// CreateContact creates a contact from the candidate profile.
func (c *Client) CreateContact(name, email, city string) (*Contact, error) {
	first := strings.TrimSpace(name)
	last := ""
	if idx := strings.Index(first, " "); idx != -1 {
		first, last = first[:idx], strings.TrimSpace(first[idx+1:])
	}

	properties := map[string]string{
		"email":     email,
		"firstname": first,
		"lastname":  last,
	}
	if city != "" {
		properties["city"] = city
	}

	var contact Contact
	if err := c.postJSON("/crm/v3/objects/contacts", map[string]interface{}{"properties": properties}, &contact); err != nil {
		return nil, fmt.Errorf("create contact: %w", err)
	}

	return &contact, nil
}
