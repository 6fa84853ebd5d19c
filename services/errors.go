package services

import "errors"

var (
	ErrPhotoNotFound       = errors.New("photo not found")
	ErrPersonNotFound      = errors.New("person not found")
	ErrInvalidFaceIndex    = errors.New("invalid face index")
	ErrDuplicatePersonName = errors.New("person with this name already exists")
	ErrInvalidPersonName   = errors.New("person name must be 1 to 100 characters")
)
