package cfg

type Cfg struct {
	// Storage configuration
	StorageBackend string
	DataDir        string
	MongoURI       string
	MongoDatabase  string

	// Application configuration
	Port              string
	WorkerCount       int
	SchedulerInterval int
	FetchTimeout      int
	FetchWindowHours  int
	RetentionDays     int
	QualityRulesFile  string
	APIAccessKey      string

	// Collaborator configuration
	SummarizerEndpoint string
	SummarizerModel    string
	SummarizerAPIKey   string
	DeliveryEndpoint   string
	DeliveryAPIKey     string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
