package steps

import (
	"context"
	"fmt"
	"strings"

	"github.com/shaiso/Synapse/internal/capability"
)

// backend — общая часть transform-шагов: provider из реестра
// и цикл "сессия → генерация → закрытие".
type backend struct {
	caps *capability.Registry
	kind capability.Kind
}

func (b backend) provider() (capability.Provider, error) {
	if b.caps == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoProvider, b.kind)
	}
	return b.caps.Get(b.kind)
}

// checkAvailability возвращает состояние capability.
func (b backend) checkAvailability(ctx context.Context, p capability.Provider, opts capability.Options) (capability.Availability, error) {
	status, err := p.Availability(ctx, opts)
	if err != nil {
		return capability.Unavailable, err
	}
	return status, nil
}

// requireReady — для capability без загрузки модели.
func (b backend) requireReady(status capability.Availability, message string) error {
	if status.IsReady() {
		return nil
	}
	return &UnavailableError{Kind: b.kind, Status: status, Message: message}
}

// stream создаёт сессию, потоково генерирует ответ и закрывает сессию.
// После каждого чанка наблюдатель получает накопленный текст.
func (b backend) stream(ctx context.Context, p capability.Provider, opts capability.Options, in capability.Input, req *Request) (string, error) {
	sess, err := p.CreateSession(ctx, opts)
	if err != nil {
		return "", err
	}
	defer sess.Close()

	var sb strings.Builder
	for chunk, err := range sess.GenerateStreaming(ctx, in) {
		if err != nil {
			return "", err
		}
		sb.WriteString(chunk)
		req.emit(sb.String())
	}

	// Поток мог закончиться молча после отмены
	if err := ctx.Err(); err != nil {
		return "", err
	}

	return sb.String(), nil
}

// oneShot создаёт сессию, генерирует ответ целиком и закрывает сессию.
func (b backend) oneShot(ctx context.Context, p capability.Provider, opts capability.Options, in capability.Input, req *Request) (string, error) {
	sess, err := p.CreateSession(ctx, opts)
	if err != nil {
		return "", err
	}
	defer sess.Close()

	return b.generate(ctx, sess, in, req)
}

func (b backend) generate(ctx context.Context, sess capability.Session, in capability.Input, req *Request) (string, error) {
	text, err := sess.Generate(ctx, in)
	if err != nil {
		return "", err
	}
	req.emit(text)
	return text, nil
}

// fail оборачивает ошибку backend в CapabilityError узла.
func fail(req *Request, label string, err error) error {
	return &CapabilityError{
		NodeID:   req.Node.ID,
		NodeName: req.Node.Name,
		Label:    label,
		Err:      err,
	}
}

func orDefault(value, def string) string {
	if value == "" {
		return def
	}
	return value
}
