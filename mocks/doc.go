package mocks

//go:generate mockgen -destination=transcriber.go -package=mocks github.com/mrsingh-rishi/voice-translate/stt Transcriber
//go:generate mockgen -destination=translator.go -package=mocks github.com/mrsingh-rishi/voice-translate/translate Translator
//go:generate mockgen -destination=synthesizer.go -package=mocks github.com/mrsingh-rishi/voice-translate/tts Synthesizer
