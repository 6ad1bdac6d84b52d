package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/delivio/user-service/config"
	userapp "github.com/delivio/user-service/internal/application"
)

// The courier worker drains the courier-provisioning queue and calls the
// courier service for each registered courier. Failed calls are requeued so
// provisioning is retried instead of lost, which the service's own
// fire-and-forget publish cannot guarantee on its own.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	if cfg.RabbitMQURL == "" || cfg.CourierQueue == "" {
		log.Fatal("RabbitMQ not configured")
	}
	if cfg.CourierServiceURL == "" {
		log.Fatal("courier service URL not configured")
	}

	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("amqp dial: %v", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatalf("amqp channel: %v", err)
	}
	defer func() { _ = ch.Close() }()

	// Prefetch for fair dispatch
	if err := ch.Qos(16, 0, false); err != nil {
		log.Fatalf("qos: %v", err)
	}

	if _, err := ch.QueueDeclare(cfg.CourierQueue, true, false, false, false, nil); err != nil {
		log.Fatalf("queue declare: %v", err)
	}

	msgs, err := ch.Consume(cfg.CourierQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatalf("consume: %v", err)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	ctx := context.Background()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		for msg := range msgs {
			var job userapp.CourierProvisionJob
			if err := json.Unmarshal(msg.Body, &job); err != nil {
				log.Printf("bad message: %v", err)
				_ = msg.Nack(false, false)
				continue
			}

			if err := provision(ctx, client, cfg.CourierServiceURL, job); err != nil {
				log.Printf("provision courier %s failed: %v", job.Username, err)
				_ = msg.Nack(false, true)
				continue
			}
			log.Printf("courier profile provisioned for %s", job.Username)
			_ = msg.Ack(false)
		}
		close(done)
	}()

	log.Printf("courier worker listening on queue=%s", cfg.CourierQueue)
	<-stop
	log.Printf("shutting down...")
	select {
	case <-done:
	case <-time.After(2 * time.Second):
	}
}

func provision(ctx context.Context, client *http.Client, url string, job userapp.CourierProvisionJob) error {
	b, err := json.Marshal(job)
	if err != nil {
		return err
	}
	c, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(c, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()
	if res.StatusCode >= 300 {
		return &statusError{code: res.StatusCode}
	}
	return nil
}

type statusError struct{ code int }

func (e *statusError) Error() string {
	return "unexpected status " + strconv.Itoa(e.code)
}
