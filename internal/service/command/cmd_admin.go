package command

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sandevgo/deskbot/internal/core"
	"github.com/sandevgo/deskbot/pkg/log"
)

// adminCommand marks commands hidden from /help for regular users.
type adminCommand interface {
	adminOnly()
}

type UpdateFAQCommand struct {
	cfg       core.AppConfig
	access    core.AccessConfig
	faq       FAQAdmin
	formatter *ResponseFormatter
}

func NewUpdateFAQCommand(cfg core.AppConfig, access core.AccessConfig, faq FAQAdmin) *UpdateFAQCommand {
	return &UpdateFAQCommand{
		cfg:       cfg,
		access:    access,
		faq:       faq,
		formatter: NewResponseFormatter(),
	}
}

func (c *UpdateFAQCommand) adminOnly() {}

func (c *UpdateFAQCommand) Name() string {
	return "update_faq"
}

func (c *UpdateFAQCommand) Description() string {
	return "Import the FAQ file (merge|skip)"
}

func (c *UpdateFAQCommand) Execute(ctx context.Context, msg core.InboundMessage, args []string) (core.OutboundMessage, error) {
	if !c.access.IsAdmin(msg.UserID) {
		return core.OutboundMessage{}, errAdminOnly
	}

	mode := core.MergeModeMerge
	if len(args) > 0 {
		switch core.MergeMode(strings.ToLower(args[0])) {
		case core.MergeModeMerge, core.MergeModeSkip:
			mode = core.MergeMode(strings.ToLower(args[0]))
		default:
			return core.OutboundMessage{Text: c.formatter.Usage("/update_faq [merge|skip]")}, nil
		}
	}

	path := c.cfg.GetFAQFilePath()
	res, err := c.faq.ImportFile(ctx, path, mode)
	if err != nil {
		log.FromCtx(ctx).Error().Err(err).Str("path", path).Msg("faq update failed")
		return core.OutboundMessage{Text: c.formatter.Error("FAQ update failed, see logs for details.")}, nil
	}

	return core.OutboundMessage{Text: FormatMergeResult(c.formatter, res)}, nil
}

// FormatMergeResult renders an import summary; shared with the CLI import command.
func FormatMergeResult(f *ResponseFormatter, res core.MergeResult) string {
	sections := []string{
		f.Success(fmt.Sprintf("Updated: %d new, %d changed", res.Inserted, res.Updated)),
	}
	if res.Skipped > 0 {
		sections = append(sections, f.Label("Skipped", fmt.Sprintf("%d", res.Skipped)))
	}
	if len(res.Errors) > 0 {
		items := make([]string, 0, len(res.Errors))
		for _, err := range res.Errors {
			items = append(items, err.Error())
		}
		sections = append(sections, f.Warning(fmt.Sprintf("%d rows rejected:", len(res.Errors))), f.List(items))
	}
	return f.Combine(sections...)
}

type AddFAQCommand struct {
	access    core.AccessConfig
	faq       FAQAdmin
	formatter *ResponseFormatter
}

func NewAddFAQCommand(access core.AccessConfig, faq FAQAdmin) *AddFAQCommand {
	return &AddFAQCommand{
		access:    access,
		faq:       faq,
		formatter: NewResponseFormatter(),
	}
}

func (c *AddFAQCommand) adminOnly() {}

func (c *AddFAQCommand) Name() string {
	return "add_faq"
}

func (c *AddFAQCommand) Description() string {
	return "Add an entry: question | answer"
}

func (c *AddFAQCommand) Execute(ctx context.Context, msg core.InboundMessage, args []string) (core.OutboundMessage, error) {
	if !c.access.IsAdmin(msg.UserID) {
		return core.OutboundMessage{}, errAdminOnly
	}

	question, answer, ok := strings.Cut(strings.Join(args, " "), "|")
	question, answer = strings.TrimSpace(question), strings.TrimSpace(answer)
	if !ok || question == "" || answer == "" {
		return core.OutboundMessage{Text: c.formatter.Usage("/add_faq question | answer")}, nil
	}

	if err := c.faq.Add(ctx, question, answer); err != nil {
		if errors.Is(err, core.ErrAlreadyExists) {
			return core.OutboundMessage{Text: c.formatter.Error("This question already exists. Use /update_faq to change answers.")}, nil
		}
		return core.OutboundMessage{}, err
	}
	return core.OutboundMessage{Text: c.formatter.Success("FAQ entry added.")}, nil
}
