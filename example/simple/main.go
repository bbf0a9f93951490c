package main

import (
	"context"
	"fmt"
	"log"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/eaglemoor/kvcache"
	"github.com/eaglemoor/kvcache/codec"
	cachegrpc "github.com/eaglemoor/kvcache/transport/grpc"
)

const (
	serverHost = "localhost:8082"
)

type Person struct {
	ID   int32  `msgpack:"id"`
	Name string `msgpack:"name"`
}

func initClient() (*cachegrpc.Client, *grpc.ClientConn) {
	conn, err := grpc.NewClient(serverHost, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("can't init grpc client to the cache server: %s", err.Error())
	}

	return cachegrpc.NewClient(conn), conn
}

func main() {
	client, conn := initClient()
	defer conn.Close()

	people := kvcache.NewTyped[Person](client, codec.Msgpack[Person]{})

	ctx := context.Background()

	for _, id := range []int32{10, 20, 30} {
		p := Person{ID: id, Name: fmt.Sprintf("user #%d", id)}
		if err := people.Set(ctx, key(id), p); err != nil {
			log.Fatalf("set %d: %s", id, err)
		}
	}

	// the server answers these with one multi-key fetch
	var wg sync.WaitGroup
	for _, id := range []int32{10, 20, 30, 40, 10} {
		wg.Add(1)
		go func(id int32) {
			defer wg.Done()

			p, ok, err := people.Get(ctx, key(id))
			log.Printf("user #%d: %v, found: %t, error: %v", id, p, ok, err)
		}(id)
	}
	wg.Wait()

	removed, err := client.Delete(ctx, key(10))
	log.Printf("delete #10: %t, error: %v", removed, err)
}

func key(id int32) string {
	return fmt.Sprintf("person:%d", id)
}
