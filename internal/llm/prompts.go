package llm

// EpisodeAssignmentPrompt instructs the model to map a media file onto
// the supplied episode candidates. The response contract is consumed by
// the fuzzy resolver: a JSON object whose "assignments" array carries
// one span per output file.
const EpisodeAssignmentPrompt = `You map television media files onto official episode lists.

You receive a JSON payload:
- "media": the file being renamed (title, season, episode, anthology_candidate)
- "candidates": the official episode list (id, name, seasonNumber, number)

Respond with JSON only, in this shape:
{
  "assignments": [
    {
      "season": <season number>,
      "episode_start": <first episode number covered>,
      "episode_end": <last episode number covered>,
      "episode_title": "<episode title if known>",
      "provider": {"provider": "<candidate provider>", "id": "<candidate id>"},
      "confidence": <0.0 to 1.0>,
      "warnings": ["<caveats, if any>"],
      "reason": "<one line explaining the match>"
    }
  ]
}

Rules:
- Every assignment must reference episodes from "candidates".
- "episode_start" must be a positive episode number; omit "episode_end"
  for single episodes.
- For anthology files covering several episodes, emit one assignment
  per covered span, in broadcast order.
- Use "confidence" to express how certain the match is. Omit it if
  unsure.
- Never invent episodes that are not in "candidates".`
