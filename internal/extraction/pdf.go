package extraction

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/JaimeStill/sectional/internal/fields"
)

// formExport mirrors the form JSON written by pdfcpu's form export.
type formExport struct {
	Forms []struct {
		TextFields  []exportField `json:"textfield"`
		DateFields  []exportField `json:"datefield"`
		CheckBoxes  []exportField `json:"checkbox"`
		RadioGroups []exportField `json:"radiobuttongroup"`
		ComboBoxes  []exportField `json:"combobox"`
		ListBoxes   []exportField `json:"listbox"`
	} `json:"forms"`
}

type exportField struct {
	Pages  []int        `json:"pages"`
	ID     string       `json:"id"`
	Name   string       `json:"name"`
	Value  fields.Value `json:"value"`
	Values []string     `json:"values"`
}

// PDFDocument is the field list of one PDF together with its page count.
type PDFDocument struct {
	Fields    []fields.Field `json:"fields"`
	PageCount int            `json:"page_count"`
}

// LoadPDF reads the AcroForm fields of the PDF at path.
func LoadPDF(path string) (*PDFDocument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer f.Close()
	return ParsePDF(f)
}

// ParsePDF exports the AcroForm of rs and converts every widget to a field.
// A field spread over several pages is placed on the first.
func ParsePDF(rs io.ReadSeeker) (*PDFDocument, error) {
	conf := model.NewDefaultConfiguration()

	count, err := api.PageCount(rs, conf)
	if err != nil {
		return nil, fmt.Errorf("%w: page count: %w", ErrInvalidInput, err)
	}
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind pdf: %w", err)
	}

	var buf bytes.Buffer
	if err := api.ExportFormJSON(rs, &buf, "sectional", conf); err != nil {
		return nil, fmt.Errorf("%w: export form: %w", ErrUnsupported, err)
	}

	var export formExport
	if err := json.Unmarshal(buf.Bytes(), &export); err != nil {
		return nil, fmt.Errorf("%w: decode form export: %w", ErrInvalidInput, err)
	}

	doc := &PDFDocument{PageCount: count}
	for _, form := range export.Forms {
		add := func(kind fields.Kind, list []exportField) {
			for _, ef := range list {
				doc.Fields = append(doc.Fields, ef.field(kind))
			}
		}
		add(fields.KindText, form.TextFields)
		add(fields.KindDate, form.DateFields)
		add(fields.KindCheckbox, form.CheckBoxes)
		add(fields.KindRadio, form.RadioGroups)
		add(fields.KindDropdown, form.ComboBoxes)
		add(fields.KindList, form.ListBoxes)
	}
	return doc, nil
}

func (ef exportField) field(kind fields.Kind) fields.Field {
	f := fields.Field{
		ID:    ef.ID,
		Name:  ef.Name,
		Value: ef.Value,
		Type:  kind,
	}
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.Value.IsZero() && len(ef.Values) > 0 {
		f.Value = fields.Value{List: ef.Values}
	}
	if len(ef.Pages) > 0 {
		f.Page = ef.Pages[0]
	}
	return f
}
