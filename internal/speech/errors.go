package speech

// ErrorKind classifies device-level recognition failures. The raw codes
// follow the conventional speech engine vocabulary; anything unknown
// collapses to ErrUnknown.
type ErrorKind string

const (
	ErrNoSpeech     ErrorKind = "no-speech"
	ErrAudioCapture ErrorKind = "audio-capture"
	ErrNotAllowed   ErrorKind = "not-allowed"
	ErrNetwork      ErrorKind = "network"
	ErrAborted      ErrorKind = "aborted"
	ErrUnknown      ErrorKind = "unknown"
)

// KindFromCode maps a raw engine error code to an ErrorKind.
func KindFromCode(code string) ErrorKind {
	switch ErrorKind(code) {
	case ErrNoSpeech, ErrAudioCapture, ErrNotAllowed, ErrNetwork, ErrAborted:
		return ErrorKind(code)
	default:
		return ErrUnknown
	}
}

// Message returns the user-facing Japanese message for the error kind.
func (k ErrorKind) Message() string {
	switch k {
	case ErrNoSpeech:
		return "音声が検出されませんでした。もう一度お試しください"
	case ErrAudioCapture:
		return "マイクにアクセスできません。接続を確認してください"
	case ErrNotAllowed:
		return "マイクの使用が許可されていません"
	case ErrNetwork:
		return "ネットワークエラーが発生しました"
	case ErrAborted:
		return "音声認識が中断されました"
	default:
		return "音声認識エラーが発生しました"
	}
}
