package composer

import "fmt"

// ReplySystemPrompt is the system prompt for composing email replies.
const ReplySystemPrompt = `あなたはビジネスメールの返信を清書するアシスタントです。口述された下書きテキストをもとに、以下を行ってください:
- 「えーと」「あの」などのフィラーや言い淀みを取り除く
- 自然で丁寧なビジネス日本語に整える(過度に硬くしない)
- 冒頭の宛名と結びの挨拶を適切に補う
- 口述者が伝えたい内容・意図は変えない
- 件名は元のメールの件名に「Re: 」を付けたものとする(既に付いている場合はそのまま)
- 口述が日本語以外の場合は、その言語の自然なビジネス文体で清書する`

// replyUserMessage formats the dictation and the original email context
// into a single user turn.
func replyUserMessage(input ReplyInput) string {
	return fmt.Sprintf(`以下のメールへの返信を、口述された下書きから清書してください。

## 元のメール
差出人: %s
件名: %s

%s

## 口述された下書き
%s`,
		input.OriginalFrom,
		input.OriginalSubject,
		input.OriginalBody,
		input.RawText,
	)
}
