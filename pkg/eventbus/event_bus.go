package eventbus

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/sirupsen/logrus"
)

// EventBus dispatches events to every subscriber whose parameter list matches
// the published arguments.
type EventBus interface {
	Publish(args ...any)
	PublishE(args ...any) error
	// Subscribe registers handler and returns a func that removes it.
	Subscribe(handler any) (unsubscribe func())
	SubscribersCount() int
	Clear()
}

var (
	ErrNoSubscribers        = errors.New("eventbus: no matching subscribers")
	ErrInvalidHandlerReturn = errors.New("eventbus: invalid handler return signature")
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

type subscriber struct {
	id      uint64
	handler reflect.Value
}

type publisher struct {
	log *logrus.Logger

	mu     sync.RWMutex
	nextID uint64
	subs   []subscriber
}

func NewEventPublisher(log *logrus.Logger) EventBus {
	return &publisher{log: log}
}

func MatchSignature(handler any, args []any) bool {
	t := reflect.TypeOf(handler)
	if t == nil || t.Kind() != reflect.Func || t.NumIn() != len(args) {
		return false
	}
	for i, arg := range args {
		paramType := t.In(i)
		if arg == nil {
			switch paramType.Kind() {
			case reflect.Interface, reflect.Ptr:
				continue
			default:
				return false
			}
		}
		if !reflect.TypeOf(arg).AssignableTo(paramType) {
			return false
		}
	}
	return true
}

func (p *publisher) Subscribe(handler any) func() {
	v := reflect.ValueOf(handler)
	if v.Kind() != reflect.Func {
		panic("eventbus: handler must be a function")
	}
	p.mu.Lock()
	p.nextID++
	id := p.nextID
	p.subs = append(p.subs, subscriber{id: id, handler: v})
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			for i, s := range p.subs {
				if s.id == id {
					p.subs = append(p.subs[:i:i], p.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Publish never fails: handler errors and panics are logged.
func (p *publisher) Publish(args ...any) {
	err := p.PublishE(args...)
	if err == nil || p.log == nil {
		return
	}
	if errors.Is(err, ErrNoSubscribers) {
		p.log.WithField("event", describe(args)).Debug("eventbus.publish.unhandled")
		return
	}
	p.log.WithError(err).WithField("event", describe(args)).Error("eventbus.publish.failed")
}

func (p *publisher) PublishE(args ...any) error {
	p.mu.RLock()
	subs := append([]subscriber(nil), p.subs...)
	p.mu.RUnlock()

	handled := false
	var errs []error
	for _, s := range subs {
		if !MatchSignature(s.handler.Interface(), args) {
			continue
		}
		handled = true
		if err := call(s.handler, args); err != nil {
			errs = append(errs, err)
		}
	}
	if !handled {
		return ErrNoSubscribers
	}
	return errors.Join(errs...)
}

func call(handler reflect.Value, args []any) (err error) {
	name := handler.Type().String()
	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		if arg == nil {
			in[i] = reflect.Zero(handler.Type().In(i))
			continue
		}
		in[i] = reflect.ValueOf(arg)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("eventbus: handler %s panicked: %v", name, r)
		}
	}()
	out := handler.Call(in)
	switch {
	case len(out) == 0:
		return nil
	case len(out) > 1 || out[0].Type() != errorType:
		return fmt.Errorf("%w: handler %s", ErrInvalidHandlerReturn, name)
	case out[0].IsNil():
		return nil
	default:
		return out[0].Interface().(error)
	}
}

func (p *publisher) SubscribersCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.subs)
}

func (p *publisher) Clear() {
	p.mu.Lock()
	p.subs = nil
	p.mu.Unlock()
}

func describe(args []any) string {
	if len(args) == 0 {
		return "<empty>"
	}
	return fmt.Sprintf("%T", args[0])
}
