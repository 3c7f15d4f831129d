package arguments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"botframe/pkg/flow"
	"botframe/pkg/platform"
	"botframe/pkg/prompt"
	"botframe/pkg/types"
)

// process casts phrase and falls back to default, otherwise and prompt, in
// that order. A failed cast with none of them resolves to nil.
func (r *Runner) process(ctx context.Context, msg platform.Message, schema *Schema, arg *argument, phrase string) (any, error) {
	opts := r.promptOptions(schema, arg)

	if phrase == "" && deref(opts.Optional) {
		return r.defaultValue(ctx, msg, arg, phrase, nil)
	}

	res, err := arg.cast(ctx, msg, phrase)
	if err != nil {
		return nil, fmt.Errorf("casting argument %s: %w", arg.ID, err)
	}
	if !types.IsFailure(res) {
		return res, nil
	}

	switch {
	case arg.hasDefault():
		return r.defaultValue(ctx, msg, arg, phrase, res)
	case arg.Otherwise != nil:
		return r.otherwise(ctx, msg, arg, phrase, res)
	case arg.Prompt != nil:
		return r.collect(ctx, msg, arg, opts, phrase, res)
	}
	return nil, nil
}

func (r *Runner) defaultValue(ctx context.Context, msg platform.Message, arg *argument, phrase string, failure any) (any, error) {
	if arg.DefaultFunc != nil {
		v, err := arg.DefaultFunc(ctx, msg, Failure{Phrase: phrase, Value: failure})
		if err != nil {
			return nil, fmt.Errorf("default for argument %s: %w", arg.ID, err)
		}
		return v, nil
	}
	return arg.Default, nil
}

func (r *Runner) otherwise(ctx context.Context, msg platform.Message, arg *argument, phrase string, failure any) (any, error) {
	data := PromptData{RetryCount: 1, Message: msg, Phrase: phrase, Failure: failure}
	if err := r.say(ctx, msg, arg.Otherwise, data); err != nil {
		return nil, err
	}
	return flow.CancelWith(flow.ReasonOtherwise), nil
}

func (r *Runner) say(ctx context.Context, msg platform.Message, text Text, data PromptData) error {
	if text == nil {
		return nil
	}
	s, err := text(ctx, msg, data)
	if err != nil {
		return fmt.Errorf("rendering prompt text: %w", err)
	}
	if s == "" {
		return nil
	}
	if err := msg.Send(ctx, s); err != nil {
		return fmt.Errorf("sending prompt text: %w", err)
	}
	return nil
}

// collect runs the prompt loop until a reply casts, the user cancels, the
// retries run out or the session times out.
func (r *Runner) collect(ctx context.Context, msg platform.Message, arg *argument, opts PromptOptions, commandInput string, commandFailure any) (any, error) {
	infinite := deref(opts.Infinite) || (arg.Match == MatchSeparate && commandInput == "")
	retries := deref(opts.Retries)

	session, err := r.prompts.Open(prompt.KeyOf(msg))
	if err != nil {
		if errors.Is(err, prompt.ErrBusy) {
			return flow.CancelWith(flow.ReasonInPrompt), nil
		}
		return flow.CancelWith(flow.ReasonClosed), nil
	}
	defer session.Close()

	log := r.log.WithFields(
		zap.String("argument", arg.ID),
		zap.String("channel_id", msg.ChannelID()),
		zap.String("user_id", msg.Author().ID))

	retryCount := 1
	if commandInput != "" {
		retryCount = 2
	}

	var values []any
	data := PromptData{Message: msg, Phrase: commandInput, Failure: commandFailure, Infinite: infinite}

	for {
		data.RetryCount = retryCount
		if retryCount != 1 || !infinite || len(values) == 0 {
			text := opts.Start
			if retryCount != 1 {
				text = opts.Retry
			}
			if err := r.say(ctx, msg, text, data); err != nil {
				return nil, err
			}
		}

		reply, err := session.Await(ctx, opts.Time)
		switch {
		case errors.Is(err, prompt.ErrTimeout):
			log.Debug("Prompt timed out")
			if err := r.say(ctx, msg, opts.Timeout, data); err != nil {
				return nil, err
			}
			return flow.FailWith(flow.ReasonTimeout, nil), nil
		case errors.Is(err, prompt.ErrClosed):
			return flow.CancelWith(flow.ReasonClosed), nil
		case err != nil:
			return nil, err
		}

		content := strings.TrimSpace(reply.Content())
		data.Message = reply
		data.Phrase = content

		if deref(opts.Breakout) && r.looksLikeCommand(ctx, reply) {
			log.Debug("Prompt broken out by a command")
			return flow.Retry(reply), nil
		}

		if opts.CancelWord != "" && strings.EqualFold(content, opts.CancelWord) {
			if err := r.say(ctx, msg, opts.Cancel, data); err != nil {
				return nil, err
			}
			return flow.CancelWith(flow.ReasonCancel), nil
		}

		if infinite && opts.StopWord != "" && strings.EqualFold(content, opts.StopWord) {
			if len(values) == 0 {
				retryCount++
				continue
			}
			return values, nil
		}

		res, err := arg.cast(ctx, reply, content)
		if err != nil {
			return nil, fmt.Errorf("casting argument %s: %w", arg.ID, err)
		}
		data.Failure = res

		if types.IsFailure(res) {
			if retryCount <= retries {
				retryCount++
				continue
			}
			log.Debug("Prompt retries exhausted", zap.Int("retries", retries))
			if err := r.say(ctx, msg, opts.Ended, data); err != nil {
				return nil, err
			}
			return flow.FailWith(flow.ReasonEnded, res), nil
		}

		if !infinite {
			return res, nil
		}
		values = append(values, res)
		if opts.Limit > 0 && len(values) >= opts.Limit {
			return values, nil
		}
		retryCount = 1
		data.Failure = nil
	}
}
