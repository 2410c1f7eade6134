// Package containers starts throwaway brokers for integration tests.
//
// Every file in the package carries the "integration" build tag, so the
// containers are only pulled when tests run with:
//
//	go test -tags=integration ./...
//
// Packages usually start one container per test binary from TestMain:
//
//	var broker *containers.MosquittoContainer
//
//	func TestMain(m *testing.M) {
//	    var err error
//	    broker, err = containers.NewMosquittoContainer(context.Background(), nil)
//	    if err != nil {
//	        panic(err)
//	    }
//	    code := m.Run()
//	    _ = broker.Terminate(context.Background())
//	    os.Exit(code)
//	}
//
//nolint:misspell // Mosquitto is the official Eclipse project name
package containers
