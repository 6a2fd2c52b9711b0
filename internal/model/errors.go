// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, upload, place, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeTokenMissing       = "AUTH_TOKEN_MISSING"
	ErrCodeTokenExpired       = "AUTH_TOKEN_EXPIRED"
	ErrCodeTokenMalformed     = "AUTH_TOKEN_MALFORMED"
	ErrCodeNotPlaceOwner      = "NOT_PLACE_OWNER"
	ErrCodePlaceNotFound      = "PLACE_NOT_FOUND"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeUploadSizeExceeded = "UPLOAD_SIZE_EXCEEDED"
	ErrCodeUploadUnsupported  = "UPLOAD_UNSUPPORTED_TYPE"
	ErrCodeUploadStageFailed  = "UPLOAD_STAGE_FAILED"
	ErrCodeUploadRemoteFailed = "UPLOAD_REMOTE_FAILED"
	ErrCodeTransactionFailed  = "TX_FAILED"
	ErrCodeGeocodeNotFound    = "GEOCODE_NOT_FOUND"
	ErrCodeEmailTaken         = "EMAIL_TAKEN"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
)

// NewValidationError は入力値検証エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  fmt.Sprintf("入力値が不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewTokenMissingError はトークン未提示エラーを生成する。
func NewTokenMissingError() *APIError {
	return &APIError{
		Code:     ErrCodeTokenMissing,
		Message:  "認証トークンが提示されていません。",
		Category: "auth",
		Action:   "ログインしてから再度お試しください。",
	}
}

// NewTokenExpiredError はトークン期限切れエラーを生成する。
func NewTokenExpiredError() *APIError {
	return &APIError{
		Code:     ErrCodeTokenExpired,
		Message:  "認証トークンの有効期限が切れています。",
		Category: "auth",
		Action:   "再度ログインしてください。",
	}
}

// NewTokenMalformedError はトークン不正エラーを生成する。
func NewTokenMalformedError() *APIError {
	return &APIError{
		Code:     ErrCodeTokenMalformed,
		Message:  "認証トークンが不正です。",
		Category: "auth",
		Action:   "再度ログインしてください。",
	}
}

// NewNotPlaceOwnerError は場所の所有者以外による変更操作エラーを生成する。
func NewNotPlaceOwnerError() *APIError {
	return &APIError{
		Code:     ErrCodeNotPlaceOwner,
		Message:  "この場所を変更する権限がありません。",
		Category: "auth",
		Action:   "自分が作成した場所のみ変更できます。",
	}
}

// NewPlaceNotFoundError は場所未検出エラーを生成する。
func NewPlaceNotFoundError(placeID string) *APIError {
	return &APIError{
		Code:     ErrCodePlaceNotFound,
		Message:  fmt.Sprintf("指定された場所が見つかりません: %s", placeID),
		Category: "place",
		Action:   "場所IDを確認してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ユーザーIDを確認してください。",
	}
}

// NewUploadSizeExceededError はアップロードサイズ超過エラーを生成する。
func NewUploadSizeExceededError(size, limit int64) *APIError {
	return &APIError{
		Code:     ErrCodeUploadSizeExceeded,
		Message:  fmt.Sprintf("画像サイズが上限を超えています: %dバイト（上限%dバイト）", size, limit),
		Category: "upload",
		Action:   "画像を小さくしてから再度アップロードしてください。",
	}
}

// NewUploadUnsupportedTypeError は非対応MIMEタイプエラーを生成する。
func NewUploadUnsupportedTypeError(mimeType string) *APIError {
	return &APIError{
		Code:     ErrCodeUploadUnsupported,
		Message:  fmt.Sprintf("対応していない画像形式です: %s", mimeType),
		Category: "upload",
		Action:   "PNGまたはJPEG形式の画像をアップロードしてください。",
	}
}

// NewUploadStageFailedError はローカル保存失敗エラーを生成する。
func NewUploadStageFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeUploadStageFailed,
		Message:  "画像の一時保存に失敗しました。",
		Category: "upload",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewUploadRemoteFailedError はリモートストアへのアップロード失敗エラーを生成する。
func NewUploadRemoteFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeUploadRemoteFailed,
		Message:  "画像ストレージへのアップロードに失敗しました。",
		Category: "upload",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewTransactionFailedError はデータストアのトランザクション失敗エラーを生成する。
// operationには「場所の作成」のような操作名を渡す。
func NewTransactionFailedError(operation string) *APIError {
	return &APIError{
		Code:     ErrCodeTransactionFailed,
		Message:  fmt.Sprintf("%sに失敗しました。", operation),
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewGeocodeNotFoundError は住所から座標が得られなかった場合のエラーを生成する。
func NewGeocodeNotFoundError(address string) *APIError {
	return &APIError{
		Code:     ErrCodeGeocodeNotFound,
		Message:  fmt.Sprintf("指定された住所の座標が見つかりません: %s", address),
		Category: "validation",
		Action:   "住所を確認して再度お試しください。",
	}
}

// NewEmailTakenError はメールアドレス重複エラーを生成する。
func NewEmailTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "validation",
		Action:   "ログインするか、別のメールアドレスを使用してください。",
	}
}

// NewInvalidCredentialsError は認証情報不一致エラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "認証情報を確認して再度お試しください。",
	}
}
