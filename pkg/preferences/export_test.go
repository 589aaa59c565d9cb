package preferences

// NewMongoStoreWithCollection exposes the collection seam to tests.
var NewMongoStoreWithCollection = newMongoStore
