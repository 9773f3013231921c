package dto

// FileUpload is an uploaded file already read into memory.
type FileUpload struct {
	Filename    string
	ContentType string
	Data        []byte
}

type CategoryRequest struct {
	Name   string      `json:"name" form:"name" validate:"required"`
	Parent string      `json:"parent" form:"parent"`
	Image  *FileUpload `json:"-" form:"-"`
}

// CategoryUpdateRequest carries only the fields to change. An empty or "null"
// Parent moves the category to the root.
type CategoryUpdateRequest struct {
	Name     *string
	Parent   *string
	IsActive *bool
	Image    *FileUpload
}

// CategoryListRequest selects categories by parent: a nil Parent lists every
// category, "" or "null" lists roots, anything else is a parent id.
type CategoryListRequest struct {
	Parent          *string
	IncludeInactive bool
	IncludeProducts bool
}
