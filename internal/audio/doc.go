// Package audio provides alert chime playback.
// It uses the beep library to play WAV, OGG, and MP3 audio files
// with volume control and per-phase sound configuration.
package audio
