package models

import (
	"fmt"
	"strconv"
	"time"
)

// Category groups logbook schemas on the dashboard.
type Category string

const (
	CategoryUtility     Category = "utility"
	CategoryMaintenance Category = "maintenance"
	CategoryQuality     Category = "quality"
	CategorySafety      Category = "safety"
	CategoryValidation  Category = "validation"
	CategoryCustom      Category = "custom"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryUtility, CategoryMaintenance, CategoryQuality,
		CategorySafety, CategoryValidation, CategoryCustom:
		return true
	}
	return false
}

// Field types a schema may declare. Anything else passes through
// unvalidated; rendering is the client's concern.
const (
	FieldText     = "text"
	FieldNumber   = "number"
	FieldDate     = "date"
	FieldTime     = "time"
	FieldSelect   = "select"
	FieldCheckbox = "checkbox"
)

// SchemaField is one column declaration inside a LogbookSchema.
type SchemaField struct {
	Name     string   `json:"name"`
	Label    string   `json:"label"`
	Type     string   `json:"type"`
	Required bool     `json:"required"`
	Unit     string   `json:"unit,omitempty"`
	Options  []string `json:"options,omitempty"`
	Min      *float64 `json:"min,omitempty"`
	Max      *float64 `json:"max,omitempty"`
}

// LogbookSchema is a manager-defined logbook template. Fields holds
// the column declarations; Workflow, Display and Metadata are opaque
// blobs owned by the client renderer.
type LogbookSchema struct {
	ID          string   `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name        string   `json:"name" gorm:"index"`
	Description string   `json:"description"`
	ClientID    string   `json:"clientId" gorm:"index"`
	Category    Category `json:"category" gorm:"type:varchar(50);default:custom;index"`
	Fields      JSONList `json:"fields" gorm:"type:text"`
	Workflow    JSONMap  `json:"workflow" gorm:"type:text"`
	Display     JSONMap  `json:"display" gorm:"type:text"`
	Metadata    JSONMap  `json:"metadata" gorm:"type:text"`
	CreatedByID *string  `json:"createdById" gorm:"type:varchar(36)"`

	RoleAssignments []LogbookRoleAssignment `json:"roleAssignments" gorm:"foreignKey:SchemaID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FieldDefs decodes the stored field list into typed declarations.
func (s *LogbookSchema) FieldDefs() ([]SchemaField, error) {
	defs := make([]SchemaField, 0, len(s.Fields))
	for i, raw := range s.Fields {
		m, ok := raw.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("field %d: not an object", i)
		}
		f := SchemaField{
			Name:     stringAt(m, "name"),
			Label:    stringAt(m, "label"),
			Type:     stringAt(m, "type"),
			Required: boolAt(m, "required"),
			Unit:     stringAt(m, "unit"),
		}
		if opts, ok := m["options"].([]interface{}); ok {
			for _, o := range opts {
				if s, ok := o.(string); ok {
					f.Options = append(f.Options, s)
				}
			}
		}
		if v, ok := floatAt(m, "min"); ok {
			f.Min = &v
		}
		if v, ok := floatAt(m, "max"); ok {
			f.Max = &v
		}
		if f.Name == "" {
			return nil, fmt.Errorf("field %d: missing name", i)
		}
		defs = append(defs, f)
	}
	return defs, nil
}

// ValidateData checks an entry's data against the schema: required
// fields present, numbers parse and respect min/max, selects match an
// option. Everything else is accepted as-is.
func (s *LogbookSchema) ValidateData(data JSONMap) error {
	defs, err := s.FieldDefs()
	if err != nil {
		return err
	}
	for _, f := range defs {
		raw, present := data[f.Name]
		if !present || raw == nil || raw == "" {
			if f.Required {
				return fmt.Errorf("%s is required", f.Name)
			}
			continue
		}
		switch f.Type {
		case FieldNumber:
			n, ok := toFloat(raw)
			if !ok {
				return fmt.Errorf("%s must be a number", f.Name)
			}
			if f.Min != nil && n < *f.Min {
				return fmt.Errorf("%s below minimum %g", f.Name, *f.Min)
			}
			if f.Max != nil && n > *f.Max {
				return fmt.Errorf("%s above maximum %g", f.Name, *f.Max)
			}
		case FieldSelect:
			sv, ok := raw.(string)
			if !ok {
				return fmt.Errorf("%s must be a string option", f.Name)
			}
			if len(f.Options) > 0 && !contains(f.Options, sv) {
				return fmt.Errorf("%s: %q is not an allowed option", f.Name, sv)
			}
		}
	}
	return nil
}

// LogbookRoleAssignment grants one role access to one schema.
// Assigning replaces a schema's whole set in a single call.
type LogbookRoleAssignment struct {
	ID           string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	SchemaID     string    `json:"schemaId" gorm:"type:varchar(36);uniqueIndex:idx_logbook_schema_role"`
	Role         Role      `json:"role" gorm:"type:varchar(20);uniqueIndex:idx_logbook_schema_role"`
	AssignedByID *string   `json:"assignedById" gorm:"type:varchar(36)"`
	AssignedAt   time.Time `json:"assignedAt" gorm:"autoCreateTime"`
}

// LogbookEntry is one record written against a schema.
type LogbookEntry struct {
	ID          string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	SchemaID    string     `json:"schemaId" gorm:"type:varchar(36);index"`
	ClientID    string     `json:"clientId" gorm:"index"`
	SiteID      string     `json:"siteId" gorm:"index"`
	Data        JSONMap    `json:"data" gorm:"type:text"`
	Attachments StringList `json:"attachments" gorm:"type:text"`

	Workflow  `gorm:"embedded"`
	CreatedAt time.Time `json:"createdAt" gorm:"index"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func stringAt(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func boolAt(m map[string]interface{}, key string) bool {
	if v, ok := m[key].(bool); ok {
		return v
	}
	return false
}

func floatAt(m map[string]interface{}, key string) (float64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	return toFloat(v)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
