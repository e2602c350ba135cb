package common

const (
	ErrCodeBadRequestInvalidBody        = "bad_request.body.invalid"
	ErrCodeBadRequestUnknownObjectType  = "bad_request.body.objectType.unknown"
	ErrCodeBadRequestMissingObjectId    = "bad_request.body.objectId.missing"
	ErrCodeBadRequestInvalidBatchSize   = "bad_request.body.batchSize.invalid"
	ErrCodeUnauthorized                 = "unauthorized"
	ErrCodeNotFoundItem                 = "not_found.item"
	ErrCodeInternal                     = "internal"
)

var (
	ErrBadRequestUnknownObjectType = EmbedqError{Code: ErrCodeBadRequestUnknownObjectType}
	ErrBadRequestMissingObjectId   = EmbedqError{Code: ErrCodeBadRequestMissingObjectId}
	ErrBadRequestInvalidBatchSize  = EmbedqError{Code: ErrCodeBadRequestInvalidBatchSize}
	ErrNotFoundItem                = EmbedqError{Code: ErrCodeNotFoundItem}
	ErrInternal                    = EmbedqError{Code: ErrCodeInternal}
)

type EmbedqError struct {
	Code string
}

func (ee EmbedqError) Error() string {
	return ee.Code
}
