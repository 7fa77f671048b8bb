package dynamo

// DynamoDB attribute names used in update expressions across all repos.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldUserID             = "user_id"
	fieldEmail              = "email"
	fieldLogin              = "login"
	fieldLoginKey           = "login_key"
	fieldGoogleSub          = "google_sub"
	fieldGoogleOAuthEnabled = "google_oauth_enabled"
	fieldIsDeleted          = "is_deleted"
	fieldDeletedAt          = "deleted_at"
	fieldUpdatedAt          = "updated_at"
	fieldEnable             = "enable"
	fieldRefreshToken       = "refresh_token"
	fieldRefreshExpiresAt   = "refresh_expires_at"
	fieldTitle              = "title"
	fieldColor              = "color"
	fieldIsPinned           = "is_pinned"
	fieldIsFavorite         = "is_favorite"
)
