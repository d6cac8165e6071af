package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	nats "github.com/nats-io/nats.go"
)

const (
	subjectRoot = "archipelo.events"
	// dedupWindow окно, в котором повторная публикация с тем же ID отбрасывается сервером NATS.
	dedupWindow = 2 * time.Minute
	ackWait     = 30 * time.Second

	headerSource   = "Archipelo-Source"
	headerPriority = "Archipelo-Priority"
)

// JetStreamBus реализует EventBus поверх NATS JetStream.
// Субъект события: archipelo.events.<источник>.<тип>.
type JetStreamBus struct {
	nc        *nats.Conn
	js        nats.JetStreamContext
	stream    string
	published uint64
	consumed  uint64
	dropped   uint64
}

// NewJetStreamBus подключается к NATS и создаёт стрим, если его ещё нет.
func NewJetStreamBus(url, stream string, retention time.Duration) (*JetStreamBus, error) {
	if stream == "" {
		stream = "ARCHIPELO"
	}

	nc, err := nats.Connect(url, nats.Name("archipelo-server"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("подключение к NATS %s: %w", url, err)
	}
	js, err := nc.JetStream()
	if err != nil {
		_ = nc.Drain()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	if _, err := js.StreamInfo(stream); err != nil {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:       stream,
			Subjects:   []string{subjectRoot + ".>"},
			Retention:  nats.LimitsPolicy,
			MaxAge:     retention,
			Storage:    nats.FileStorage,
			Duplicates: dedupWindow,
		})
		if err != nil {
			_ = nc.Drain()
			return nil, fmt.Errorf("создание стрима %s: %w", stream, err)
		}
	}
	return &JetStreamBus{nc: nc, js: js, stream: stream}, nil
}

// subjectToken делает строку пригодной для одного токена субъекта NATS.
func subjectToken(s string) string {
	if s == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, s)
}

// subjectFor субъект публикации конверта.
func subjectFor(source, eventType string) string {
	return subjectRoot + "." + subjectToken(source) + "." + subjectToken(eventType)
}

// filterSubjects субъекты подписки, покрывающие фильтр. Фильтр по нескольким
// источникам или типам сужается на стороне клиента через matchFilter.
func filterSubjects(f Filter) []string {
	source := "*"
	if len(f.Sources) == 1 {
		source = subjectToken(f.Sources[0])
	}
	if len(f.Types) == 0 {
		return []string{subjectRoot + "." + source + ".*"}
	}
	subjects := make([]string, 0, len(f.Types))
	for _, t := range f.Types {
		subjects = append(subjects, subjectRoot+"."+source+"."+subjectToken(t))
	}
	return subjects
}

// Publish публикует конверт в JSON; ID конверта служит ключом дедупликации.
func (jb *JetStreamBus) Publish(ctx context.Context, ev *Envelope) error {
	data, err := json.Marshal(ev)
	if err != nil {
		atomic.AddUint64(&jb.dropped, 1)
		return fmt.Errorf("сериализация %s: %w", ev.EventType, err)
	}
	msg := nats.NewMsg(subjectFor(ev.Source, ev.EventType))
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, ev.ID)
	msg.Header.Set(headerSource, ev.Source)
	msg.Header.Set(headerPriority, strconv.Itoa(ev.Priority))
	if _, err := jb.js.PublishMsg(msg, nats.Context(ctx)); err != nil {
		atomic.AddUint64(&jb.dropped, 1)
		return fmt.Errorf("публикация %s: %w", ev.EventType, err)
	}
	atomic.AddUint64(&jb.published, 1)
	return nil
}

// Subscribe создаёт эфемерных потребителей новых событий; h вызывается из горутин NATS.
func (jb *JetStreamBus) Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error) {
	cb := func(msg *nats.Msg) {
		var ev Envelope
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			atomic.AddUint64(&jb.dropped, 1)
			_ = msg.Term()
			return
		}
		if matchFilter(&ev, f) {
			h(ctx, &ev)
			atomic.AddUint64(&jb.consumed, 1)
		}
		_ = msg.Ack()
	}

	sub := &jetSub{}
	for _, subject := range filterSubjects(f) {
		s, err := jb.js.Subscribe(subject, cb, nats.ManualAck(), nats.DeliverNew(), nats.AckWait(ackWait))
		if err != nil {
			sub.Unsubscribe()
			return nil, fmt.Errorf("подписка на %s: %w", subject, err)
		}
		sub.subs = append(sub.subs, s)
	}
	return sub, nil
}

type jetSub struct {
	subs []*nats.Subscription
}

func (j *jetSub) Unsubscribe() {
	for _, s := range j.subs {
		_ = s.Unsubscribe()
	}
}

// Metrics возвращает текущие метрики.
func (jb *JetStreamBus) Metrics() Stats {
	return Stats{
		Published: atomic.LoadUint64(&jb.published),
		Consumed:  atomic.LoadUint64(&jb.consumed),
		Dropped:   atomic.LoadUint64(&jb.dropped),
	}
}

// Close дожидается отправки буферов и закрывает соединение.
func (jb *JetStreamBus) Close() error {
	return jb.nc.Drain()
}
