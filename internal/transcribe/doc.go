// Package transcribe talks to the Gemini file and generation APIs to turn
// downloaded episode audio into a language tag plus speaker-attributed
// transcript segments. The provider is a black box to the rest of the
// pipeline; only this package knows its wire format.
package transcribe
