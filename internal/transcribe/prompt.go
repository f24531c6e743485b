package transcribe

// transcriptionPrompt asks for a diarized transcript as strict JSON. The
// words/turns arrays are optional; when the model supplies them the caller
// re-derives segments from word timings instead of trusting the segment
// grouping directly.
const transcriptionPrompt = `Transcribe this podcast audio completely and diarize the speakers.

Return ONLY a JSON object with this exact shape and no other text:
{
  "language": "<BCP-47 language tag of the spoken audio>",
  "segments": [
    {"speaker": "SPEAKER_00", "start": 0.0, "end": 12.5, "text": "..."}
  ],
  "words": [
    {"word": "...", "start": 0.0, "end": 0.4}
  ],
  "turns": [
    {"speaker": "SPEAKER_00", "start": 0.0, "end": 12.5}
  ]
}

Rules:
- "segments" is required and ordered by start time. Label speakers
  SPEAKER_00, SPEAKER_01, ... in order of first appearance.
- "words" and "turns" are optional. Include them only when you can produce
  accurate word-level timings.
- Times are seconds from the start of the audio as numbers, not strings.
- Do not summarize or skip content.`

// speakerNamesPrompt maps placeholder labels to real names when the
// conversation reveals them. Enrichment only, never required.
const speakerNamesPrompt = `The following is a diarized podcast transcript with placeholder speaker labels.
If the conversation makes the real name of a speaker clear, map the label to it.

Return ONLY a JSON object from label to name, for example:
{"SPEAKER_00": "Jane Doe", "SPEAKER_01": "John Smith"}

Omit labels whose names are not evident. Return {} if none are.

Transcript:
`
