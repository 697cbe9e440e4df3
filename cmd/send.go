package main

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harmonia-saude/leadops-cli/internal/lead"
	"github.com/harmonia-saude/leadops-cli/internal/phone"
	"github.com/harmonia-saude/leadops-cli/pkg/whatsapp"
)

var (
	sendPhone      string
	sendEmail      string
	sendBody       string
	sendTemplate   string
	sendMediaURL   string
	sendAllowFuzzy bool
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a WhatsApp message to a resolved lead",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if sendBody == "" && sendTemplate == "" && sendMediaURL == "" {
			return eris.New("one of --body, --template or --media-url is required")
		}

		store, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		denylist, err := initDenylist()
		if err != nil {
			return err
		}
		resolver := initResolver(store, denylist)

		client, err := initWhatsApp()
		if err != nil {
			return err
		}

		result := resolver.Resolve(ctx, lead.Input{Phone: sendPhone, Email: sendEmail})
		if result.Lead == nil {
			return eris.Errorf("no lead found for %s%s", sendPhone, sendEmail)
		}
		// A fuzzy match means the stored phone may not belong to the person
		// who wrote in. Messaging it without an explicit override risks
		// landing in a stranger's chat.
		if !result.PhoneConfidence && !sendAllowFuzzy {
			return eris.Errorf("matched lead %s via %s without phone confidence; pass --allow-fuzzy to send anyway",
				result.Lead.ID, result.Method)
		}

		to, err := outboundNumber(result, resolverRegions())
		if err != nil {
			return err
		}
		sent, err := dispatchMessage(ctx, client, to, result.Lead.Name)
		if err != nil {
			return err
		}

		zap.L().Info("message sent",
			zap.String("lead_id", result.Lead.ID),
			zap.String("to", to),
			zap.String("message_id", sent),
			zap.String("method", string(result.Method)),
		)
		return nil
	},
}

// outboundNumber picks the number to message. The resolved canonical input
// is preferred; on an email fallback where no canonical exists, the stored
// phone is normalized first so legacy suffix-only records never reach the
// vendor as-is.
func outboundNumber(result lead.MatchResult, regions []string) (string, error) {
	if result.Canonical != "" {
		return result.Canonical, nil
	}
	canonical, err := phone.Normalize(result.Lead.Phone, regions...)
	if err != nil {
		return "", eris.Wrapf(err, "lead %s has stored phone %q that cannot be canonicalized; refusing to send",
			result.Lead.ID, result.Lead.Phone)
	}
	return canonical, nil
}

func dispatchMessage(ctx context.Context, client whatsapp.Client, to, name string) (string, error) {
	var (
		res *whatsapp.SendResult
		err error
	)
	switch {
	case sendTemplate != "":
		res, err = client.SendTemplate(ctx, to, sendTemplate, map[string]string{"name": name})
	case sendMediaURL != "":
		res, err = client.SendAudio(ctx, to, sendMediaURL)
	default:
		res, err = client.SendText(ctx, to, sendBody)
	}
	if err != nil {
		return "", err
	}
	return res.MessageID, nil
}

func init() {
	sendCmd.Flags().StringVar(&sendPhone, "phone", "", "raw phone number to resolve")
	sendCmd.Flags().StringVar(&sendEmail, "email", "", "email to resolve")
	sendCmd.Flags().StringVar(&sendBody, "body", "", "text message body")
	sendCmd.Flags().StringVar(&sendTemplate, "template", "", "template name")
	sendCmd.Flags().StringVar(&sendMediaURL, "media-url", "", "audio media URL to send as a voice note")
	sendCmd.Flags().BoolVar(&sendAllowFuzzy, "allow-fuzzy", false, "send even when the match lacks phone confidence")
	rootCmd.AddCommand(sendCmd)
}
