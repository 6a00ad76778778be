package form

import (
	"fmt"
	"strings"

	"github.com/urbanisme-sn/portail/internal/schema"
	"github.com/urbanisme-sn/portail/internal/utils"
)

// File is an upload offered to a file, image or gallery field.
type File struct {
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
}

// Rejection is a file refused by a drop-zone, with the warning to show.
type Rejection struct {
	File    File   `json:"file"`
	Warning string `json:"warning"`
}

func (f *Form) maxSizeOf(fc *schema.FieldConfig) int64 {
	if fc.MaxSize > 0 {
		return fc.MaxSize
	}
	return f.maxFileSize
}

// AcceptFiles filters files dropped on the named field. Files over the size limit and, for image
// and gallery fields, non-image files are rejected with a warning. Fields that do not take several
// files keep only the first accepted one.
func (f *Form) AcceptFiles(field string, files []File) ([]File, []Rejection, error) {
	fc, ok := f.model.Field(field)
	if !ok || !fc.Type.IsFile() {
		return nil, nil, fmt.Errorf("%s is not a file field", field)
	}
	limit := f.maxSizeOf(fc)
	multiple := fc.Multiple || fc.Type == schema.TypeGallery

	var accepted []File
	var rejected []Rejection
	for _, file := range files {
		var warning string
		switch {
		case limit > 0 && file.Size > limit:
			warning = fmt.Sprintf("%s dépasse la taille maximale de %s", file.Name, utils.FormatBytes(limit))
		case fc.Type != schema.TypeFile && !strings.HasPrefix(file.ContentType, "image/"):
			warning = fmt.Sprintf("%s n'est pas une image", file.Name)
		case !multiple && len(accepted) == 1:
			warning = fmt.Sprintf("%s accepte un seul fichier", fc.Label)
		}
		if warning != "" {
			f.logger.Warn("File rejected", "model", f.model.Name, "field", field, "file", file.Name, "size", file.Size, "reason", warning)
			rejected = append(rejected, Rejection{File: file, Warning: warning})
			continue
		}
		accepted = append(accepted, file)
	}
	return accepted, rejected, nil
}
