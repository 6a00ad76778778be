package form

import (
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/urbanisme-sn/portail/internal/schema"
)

// Display layouts of temporal values.
const (
	DisplayDate     = "02/01/2006"
	DisplayDateTime = "02/01/2006 15:04"
)

// Widget is the kind of input a renderer draws for a field.
type Widget string

const (
	WidgetInput    Widget = "input"
	WidgetTextarea Widget = "textarea"
	WidgetEditor   Widget = "editor"
	WidgetSelect   Widget = "select"
	WidgetRadio    Widget = "radio"
	WidgetCheckbox Widget = "checkbox"
	WidgetDate     Widget = "date"
	WidgetDropzone Widget = "dropzone"
	WidgetTags     Widget = "tags"
	WidgetCode     Widget = "code"
)

// Control describes how to render one field for the current values.
type Control struct {
	Name        string           `json:"name"`
	Label       string           `json:"label"`
	Type        schema.FieldType `json:"type"`
	Widget      Widget           `json:"widget"`
	Required    bool             `json:"required"`
	Visible     bool             `json:"visible"`
	Value       any              `json:"value,omitempty"`
	Display     string           `json:"display,omitempty"`
	Options     []schema.Option  `json:"options,omitempty"`
	Placeholder string           `json:"placeholder,omitempty"`
	Help        string           `json:"help,omitempty"`
	Grid        *schema.Grid     `json:"grid,omitempty"`
	Relation    string           `json:"relation,omitempty"`

	// Lazy marks controls whose editor is loaded on demand.
	Lazy     bool   `json:"lazy,omitempty"`
	Accept   string `json:"accept,omitempty"`
	Multiple bool   `json:"multiple,omitempty"`
	MaxSize  int64  `json:"maxSize,omitempty"`
}

func widgetOf(t schema.FieldType) Widget {
	switch t {
	case schema.TypeTextarea:
		return WidgetTextarea
	case schema.TypeRichText:
		return WidgetEditor
	case schema.TypeSelect, schema.TypeMultiSelect, schema.TypeRelation:
		return WidgetSelect
	case schema.TypeRadio:
		return WidgetRadio
	case schema.TypeCheckbox:
		return WidgetCheckbox
	case schema.TypeDate, schema.TypeDateTime:
		return WidgetDate
	case schema.TypeFile, schema.TypeImage, schema.TypeGallery:
		return WidgetDropzone
	case schema.TypeTags:
		return WidgetTags
	case schema.TypeJSON:
		return WidgetCode
	}
	return WidgetInput
}

// Controls returns the control of every field, in field order, for values overlaid on the
// initial values.
func (f *Form) Controls(values schema.Record) []Control {
	merged := f.Initial()
	for k, v := range values {
		merged[k] = v
	}
	vis := f.Visibility(merged)

	out := make([]Control, 0, len(f.model.Fields))
	for _, fc := range f.model.Fields {
		c := Control{
			Name:        fc.Name,
			Label:       fc.Label,
			Type:        fc.Type,
			Widget:      widgetOf(fc.Type),
			Required:    fc.Required,
			Visible:     vis[fc.Name],
			Options:     fc.Options,
			Placeholder: fc.Placeholder,
			Help:        fc.Help,
			Grid:        fc.Grid,
			Relation:    fc.Relation,
			Lazy:        fc.Type == schema.TypeRichText,
		}
		if fc.Type != schema.TypePassword {
			c.Value = merged[fc.Name]
			c.Display = f.Display(&fc, c.Value)
		}
		if fc.Type.IsFile() {
			c.Multiple = fc.Multiple || fc.Type == schema.TypeGallery
			c.MaxSize = f.maxSizeOf(&fc)
			if fc.Type != schema.TypeFile {
				c.Accept = "image/*"
			}
		}
		out = append(out, c)
	}
	return out
}

// Display formats value for reading: numbers with French grouping, dates as dd/mm/yyyy in the
// form's time zone, option values by their label, booleans as Oui/Non.
func (f *Form) Display(fc *schema.FieldConfig, value any) string {
	if value == nil {
		return ""
	}
	switch {
	case fc.Type == schema.TypeNumber:
		n, ok := toFloat(value)
		if !ok {
			return ""
		}
		return FormatNumber(n)
	case fc.Type == schema.TypeCheckbox:
		if b, ok := boolean(value); ok && b {
			return "Oui"
		}
		return "Non"
	case fc.Type == schema.TypeDate || fc.Type == schema.TypeDateTime:
		t, ok := parseTime(value)
		if !ok {
			return ""
		}
		if fc.Type == schema.TypeDate {
			return t.Format(DisplayDate)
		}
		return t.In(f.loc).Format(DisplayDateTime)
	case fc.Type.HasOptions():
		var labels []string
		for _, v := range toStrings(value) {
			if o, ok := fc.Option(v); ok && o.Label != "" {
				labels = append(labels, o.Label)
			} else {
				labels = append(labels, v)
			}
		}
		return strings.Join(labels, ", ")
	case fc.Type == schema.TypeTags:
		return strings.Join(toStrings(value), ", ")
	case fc.Type.IsTextual() || fc.Type == schema.TypeTime:
		if s, ok := value.(string); ok {
			return s
		}
	}
	return ""
}

// FormatNumber formats n with the French digit grouping and decimal comma.
func FormatNumber(n float64) string {
	p := message.NewPrinter(language.French)
	return p.Sprintf("%v", number.Decimal(n, number.MaxFractionDigits(2)))
}

func parseTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case string:
		s := strings.TrimSpace(x)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func toStrings(v any) []string {
	switch x := v.(type) {
	case string:
		return []string{x}
	case []string:
		return x
	case []any:
		out := make([]string, 0, len(x))
		for _, e := range x {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
