package queue

import (
	"encoding/json"
	"log"

	"github.com/streadway/amqp"
)

type triggerJob struct {
	CampaignID int `json:"campaign_id"`
}

// AMQPQueue is the two-binary deployment: the server publishes triggers to
// RabbitMQ and cmd/worker consumes them.
type AMQPQueue struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewAMQPQueue(url string) (*AMQPQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &AMQPQueue{conn: conn, ch: ch}, nil
}

func (q *AMQPQueue) Close() {
	q.ch.Close()
	q.conn.Close()
}

func (q *AMQPQueue) declare(topic string) (amqp.Queue, error) {
	return q.ch.QueueDeclare(
		topic,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
}

func (q *AMQPQueue) Publish(topic string, campaignID int) error {
	if _, err := q.declare(topic); err != nil {
		return err
	}

	body, err := json.Marshal(triggerJob{CampaignID: campaignID})
	if err != nil {
		return err
	}

	return q.ch.Publish(
		"",    // exchange
		topic, // routing key
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}

func (q *AMQPQueue) Subscribe(topic string, handler func(campaignID int) error) error {
	queue, err := q.declare(topic)
	if err != nil {
		return err
	}

	msgs, err := q.ch.Consume(
		queue.Name,
		"",
		false, // autoAck off: ack only after the handler returns
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return err
	}

	go func() {
		for d := range msgs {
			var job triggerJob
			if err := json.Unmarshal(d.Body, &job); err != nil {
				log.Println("⚠️ invalid trigger job:", err)
				d.Ack(false)
				continue
			}

			if err := handler(job.CampaignID); err != nil {
				// A failed trigger is not requeued: a conflict means
				// another dispatch already owns the campaign, and a
				// dispatch error already settled the campaign state.
				log.Printf("⚠️ trigger for campaign %d failed: %v", job.CampaignID, err)
			}
			d.Ack(false)
		}
	}()
	return nil
}

var _ Queue = (*AMQPQueue)(nil)
