package delivery

import (
	"fmt"

	"github.com/authcore-dev/authcore/internal/render"
)

func SendVerificationCode(sender MailSender, renderer *render.Renderer, toEmail string, code string, expireMinutes int) error {
	body, err := renderer.RenderHTML("mail/verification-code", map[string]interface{}{
		"code":          code,
		"expireMinutes": expireMinutes,
	})
	if err != nil {
		return err
	}
	return sender.Send(&Message{
		To:      []string{toEmail},
		Subject: fmt.Sprintf("%s is your verification code", code),
		Body:    body,
		IsHTML:  true,
	})
}

func SendPasswordChangedNotice(sender MailSender, renderer *render.Renderer, toEmail string) error {
	body, err := renderer.RenderHTML("mail/password-changed", nil)
	if err != nil {
		return err
	}
	return sender.Send(&Message{
		To:      []string{toEmail},
		Subject: "Your password was changed",
		Body:    body,
		IsHTML:  true,
	})
}
