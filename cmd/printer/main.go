// Command printer subscribes to the relay's topics and prints each JSON
// payload on its own line. Debugging aid for eyeballing what consumers see.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

func main() {
	broker := flag.String("broker", "localhost", "MQTT broker host")
	port := flag.Int("port", 1883, "MQTT broker port")
	topic := flag.String("topic", "weather/#", "topic filter to subscribe to")
	username := flag.String("username", "", "MQTT username")
	password := flag.String("password", "", "MQTT password")
	flag.Parse()

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", *broker, *port))
	opts.SetClientID("weather-relay-printer")
	if *username != "" {
		opts.SetUsername(*username)
		opts.SetPassword(*password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		token := client.Subscribe(*topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
			fmt.Printf("%s %s\n", msg.Topic(), compact(msg.Payload()))
		})
		if token.WaitTimeout(5*time.Second) && token.Error() != nil {
			fmt.Fprintf(os.Stderr, "subscribe failed: %v\n", token.Error())
		}
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		fmt.Fprintf(os.Stderr, "connect failed: %v\n", token.Error())
		os.Exit(1)
	}
	defer client.Disconnect(250)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
}

// compact renders JSON payloads on one line, anything else verbatim.
func compact(payload []byte) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, payload); err != nil {
		return string(payload)
	}
	return buf.String()
}
