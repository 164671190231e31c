package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	log "github.com/sirupsen/logrus"
)

const botSubsystem = "telegram_bot"

// Saver persists bot counters between restarts
type Saver interface {
	SaveMetric(metricName string, value float64) error
	GetMetric(metricName string) (float64, error)
	SaveMetricWithLabels(metricName, labelKey, labelValue string, value float64) error
	GetMetricsWithLabels(metricName string) (map[string]map[string]float64, error)
}

type Bot struct {
	CommandsProcessed  prometheus.Counter
	MessagesHandled    prometheus.Counter
	ChannelsCount      prometheus.Gauge
	ChannelNames       *prometheus.CounterVec
	MessagesPerChannel *prometheus.CounterVec

	mu          sync.Mutex
	channelsSet map[int64]string
}

func NewBot(reg prometheus.Registerer) *Bot {
	m := &Bot{
		CommandsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: botSubsystem,
			Name:      "commands_processed",
			Help:      "The total number of processed commands",
		}),
		MessagesHandled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: botSubsystem,
			Name:      "messages_handled",
			Help:      "The total number of handled messages",
		}),
		ChannelsCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: botSubsystem,
			Name:      "channels_count",
			Help:      "The current number of unique channels the bot is operating in",
		}),
		ChannelNames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: botSubsystem,
			Name:      "channel_names",
			Help:      "Tracks channels the bot has interacted with",
		}, []string{"chat_id", "chat_name"}),
		MessagesPerChannel: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: botSubsystem,
			Name:      "messages_per_channel",
			Help:      "The total number of messages handled per channel",
		}, []string{"chat_id", "chat_name"}),
		channelsSet: make(map[int64]string),
	}

	reg.MustRegister(
		m.CommandsProcessed,
		m.MessagesHandled,
		m.ChannelsCount,
		m.ChannelNames,
		m.MessagesPerChannel,
	)
	return m
}

// Message records one handled message from a chat
func (m *Bot) Message(chatID int64, chatName string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.MessagesHandled.Inc()
	id := strconv.FormatInt(chatID, 10)
	if _, exists := m.channelsSet[chatID]; !exists {
		m.channelsSet[chatID] = chatName
		m.ChannelsCount.Set(float64(len(m.channelsSet)))
		m.ChannelNames.WithLabelValues(id, chatName).Inc()
	}
	m.MessagesPerChannel.WithLabelValues(id, chatName).Inc()
}

// Load restores counters saved by Save
func (m *Bot) Load(s Saver) {
	m.mu.Lock()
	defer m.mu.Unlock()

	commandsProcessed, _ := s.GetMetric("commands_processed")
	messagesHandled, _ := s.GetMetric("messages_handled")
	m.CommandsProcessed.Add(commandsProcessed)
	m.MessagesHandled.Add(messagesHandled)

	loadLabeled(s, "channel_names", func(chatIDStr, chatName string, _ float64) {
		chatID, err := strconv.ParseInt(chatIDStr, 10, 64)
		if err != nil {
			log.Warnf("Failed to parse chatID %s: %v", chatIDStr, err)
			return
		}
		m.ChannelNames.WithLabelValues(chatIDStr, chatName).Add(1)
		m.channelsSet[chatID] = chatName
	})
	m.ChannelsCount.Set(float64(len(m.channelsSet)))

	loadLabeled(s, "messages_per_channel", func(chatID, chatName string, value float64) {
		m.MessagesPerChannel.WithLabelValues(chatID, chatName).Add(value)
	})

	log.Info("Metrics loaded from database.")
}

func loadLabeled(s Saver, metricName string, callback func(labelKey, labelValue string, value float64)) {
	withLabels, err := s.GetMetricsWithLabels(metricName)
	if err != nil {
		log.Warnf("Failed to load %s: %v", metricName, err)
		return
	}
	for labelKey, labelValues := range withLabels {
		for labelValue, value := range labelValues {
			callback(labelKey, labelValue, value)
		}
	}
}

func (m *Bot) Save(s Saver) {
	m.mu.Lock()
	defer m.mu.Unlock()

	logErr := func(err error) {
		if err != nil {
			log.Errorf("Failed to save metric: %v", err)
		}
	}

	logErr(s.SaveMetric("commands_processed", Value(m.CommandsProcessed)))
	logErr(s.SaveMetric("messages_handled", Value(m.MessagesHandled)))
	logErr(s.SaveMetric("channels_count", float64(len(m.channelsSet))))

	for chatID, chatName := range m.channelsSet {
		logErr(s.SaveMetricWithLabels("channel_names", strconv.FormatInt(chatID, 10), chatName, 1))
	}

	metricChan := make(chan prometheus.Metric)
	go func() {
		m.MessagesPerChannel.Collect(metricChan)
		close(metricChan)
	}()

	for metric := range metricChan {
		metricProto := &dto.Metric{}
		if err := metric.Write(metricProto); err != nil {
			log.Warnf("Failed to read messages_per_channel metric: %v", err)
			continue
		}
		var chatID, chatName string
		for _, label := range metricProto.Label {
			switch label.GetName() {
			case "chat_id":
				chatID = label.GetValue()
			case "chat_name":
				chatName = label.GetValue()
			}
		}
		logErr(s.SaveMetricWithLabels("messages_per_channel", chatID, chatName, metricProto.Counter.GetValue()))
	}

	log.Info("Metrics saved to database.")
}

// Value reads the current value of a single counter or gauge
func Value(metric prometheus.Collector) float64 {
	metricChan := make(chan prometheus.Metric, 1)
	metric.Collect(metricChan)
	close(metricChan)

	metricProto := &dto.Metric{}
	if err := (<-metricChan).Write(metricProto); err != nil {
		log.Warnf("Failed to read metric value: %v", err)
		return 0
	}

	if metricProto.Counter != nil {
		return metricProto.Counter.GetValue()
	} else if metricProto.Gauge != nil {
		return metricProto.Gauge.GetValue()
	}
	return 0
}
