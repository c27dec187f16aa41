package carecall_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/carecall"
)

func ExampleSession() {
	eng, err := carecall.New()
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	sess := eng.NewSession()

	reply, err := sess.Start(ctx, "gps_out_of_range")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(reply.Message)

	reply, _ = sess.Submit(ctx, "hello")
	fmt.Println(reply.StepID)

	reply, _ = sess.Submit(ctx, "what?")
	fmt.Println(reply.Message)

	// Output:
	// Hello, this is Rosella, I am calling from Independence Care, how are you doing today!
	// gps_notice
	// I didn't understand that. Could you please rephrase your response?
}
