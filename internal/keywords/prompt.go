package keywords

import "strconv"

const extractorInstructions = `You extract search keywords from user queries written in any language.

Rules:
- Work out the language of the query on your own.
- Return between 3 and 7 keywords or keyphrases capturing what the query is really asking about.
- Write every keyword in the language of the query. Never translate.
- Keep multi-word expressions together when they name a single concept.
- Leave out stop words, question words, filler and generic words, for example:
  - English: what, how, why, is, the, of, and
  - Chinese: 什么、怎么、如何、是、的、了、吗、啊
- Leave out punctuation.
- Reply with the keywords only, separated by single spaces.

Examples:
- Input: "What is the impact of artificial intelligence on education?"
  Output: artificial intelligence education impact
- Input: "什么是人工智能对教育的影响？"
  Output: 人工智能 教育 影响`

// BuildPrompt returns the single user message sent to the chat service.
func BuildPrompt(query string) string {
	return extractorInstructions + "\n\n### Input Query\n" + strconv.Quote(query)
}
