package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"zurbo-service/config"
	"zurbo-service/controller"
	"zurbo-service/database"
	"zurbo-service/escrow"
	"zurbo-service/event"
	"zurbo-service/event/listener"
	"zurbo-service/model"
	"zurbo-service/router"
	"zurbo-service/socketio"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

func main() {
	log.SetPrefix("zurbo-service: ")

	rest := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		StrictRouting:         true,
		AppName:               "zurbo-service",
	})

	rest.Use(cors.New())

	database.RedisConnect()
	database.PostgresConnect()

	event.RabbitMQConnect([]string{
		// Connect to queues
		"payments",
		"notifications",
	})

	// Run payments listener
	go listener.Payments()

	// Subscribe listener channel to payment provider events
	event.RabbitMQSubscribe([]event.RabbitMQSubscribeListener{
		{
			Queue:   "payments",
			Channel: listener.PaymentsChannel,
		},
	})

	// Init event logs
	event.Init()

	socket := socketio.Init(rest)

	router.Rest(rest)
	router.Socket(socket)

	// Auto-release sweep: authorized escrow payments past their release
	// date are captured without anyone clicking anything.
	sweepInterval := time.Duration(config.ConfigInt("ESCROW_SWEEP_SECONDS", 300)) * time.Second
	go escrow.StartAutoRelease(database.Postgres, sweepInterval, func(payment model.EscrowPayment) {
		data, _ := json.Marshal(map[string]interface{}{
			"conversation_id": payment.ConversationID,
			"escrow_id":       payment.ID,
			"net_amount":      escrow.Net(payment.GrossAmount, payment.ZurboFee).StringFixed(2),
		})
		event.Emit("notifications", "escrow.released", data, true)
	})

	// Expired idempotency records are only dead weight after their
	// retention window.
	go controller.StartIdempotencyPurge(database.Postgres, time.Hour)

	go rest.Listen(fmt.Sprintf(":%s", config.Config("SERVER_PORT")))

	exit := make(chan struct{})
	SignalC := make(chan os.Signal, 1)

	signal.Notify(SignalC, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		for s := range SignalC {
			switch s {
			case syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT:
				close(exit)
				return
			}
		}
	}()

	<-exit
	socket.Close(nil)
	event.RabbitMQChannel.Close()
	event.RabbitMQConnection.Close()
	event.InLogFile.Close()
	event.OutLogFile.Close()
	os.Exit(0)
}
