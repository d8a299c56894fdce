// Package message renders the Slack and email content exchanged with staff and members,
// and reads rendered content back out of clicked messages.
package message

import (
	"github.com/slack-go/slack"

	"github.com/artifactory/invoice-reminders/internal/domain"
)

// Section returns a fresh mrkdwn section block. blockID may be empty.
func Section(blockID, text string) *slack.SectionBlock {
	block := slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, text, false, false), nil, nil)
	block.BlockID = blockID
	return block
}

func Divider() *slack.DividerBlock {
	return slack.NewDividerBlock()
}

func Actions(elements ...slack.BlockElement) *slack.ActionBlock {
	return slack.NewActionBlock("", elements...)
}

func Button(actionID, label, value string) *slack.ButtonBlockElement {
	return slack.NewButtonBlockElement(actionID, value, plainText(label))
}

// LinkButton opens url in the browser; Slack still delivers a click event for actionID.
func LinkButton(actionID, label, value, url string) *slack.ButtonBlockElement {
	button := Button(actionID, label, value)
	button.URL = url
	return button
}

func Confirm(title, text, confirm, deny string) *slack.ConfirmationBlockObject {
	return slack.NewConfirmationBlockObject(plainText(title), plainText(text), plainText(confirm), plainText(deny))
}

func plainText(text string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.PlainTextType, text, true, false)
}

// BlockTexts returns the text of the header and message section blocks, if present.
func BlockTexts(blocks slack.Blocks) (header, body string) {
	for _, block := range blocks.BlockSet {
		section, ok := block.(*slack.SectionBlock)
		if !ok || section.Text == nil {
			continue
		}

		switch section.BlockID {
		case domain.BlockHeader:
			header = section.Text.Text
		case domain.BlockMessage:
			body = section.Text.Text
		}
	}
	return header, body
}
