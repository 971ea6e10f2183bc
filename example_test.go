package rendezvous_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/creachadair/rendezvous"
)

func ExampleChannel() {
	c := rendezvous.New[int32]()
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()

		// Speak does not return until a listener has taken the value.
		if err := c.Speak(ctx, 2); err != nil {
			panic(err)
		}
		fmt.Println("spoke 2")
	}()

	v, err := c.Listen(ctx)
	if err != nil {
		panic(err)
	}
	wg.Wait()
	fmt.Println("heard", v)

	// Output:
	// spoke 2
	// heard 2
}

func ExampleNewFIFO() {
	c := rendezvous.NewFIFO[string]()
	ctx := context.Background()

	go func() {
		for _, s := range []string{"apple", "pear", "plum"} {
			c.Speak(ctx, s)
		}
		c.Close()
	}()

	for {
		v, err := c.Listen(ctx)
		if err != nil {
			fmt.Println(err)
			break
		}
		fmt.Println(v)
	}

	// Output:
	// apple
	// pear
	// plum
	// channel is closed
}
