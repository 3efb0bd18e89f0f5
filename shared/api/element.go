package api

// Link is a named relation from a resource to another resource.
type Link struct {
	Rel    string `json:"rel" yaml:"rel"`
	Href   string `json:"href" yaml:"href"`
	Method string `json:"method,omitempty" yaml:"method,omitempty"`
}

// ElementEntry is the reference returned by searches and collections.
type ElementEntry struct {
	Name string `json:"name" yaml:"name"`
	Href string `json:"href" yaml:"href"`
	Type string `json:"type,omitempty" yaml:"type,omitempty"`
}

// ElementList is the envelope used by search and collection responses.
type ElementList struct {
	Result []ElementEntry `json:"result" yaml:"result"`
}

// EntryPointList is the document served at the API root.
type EntryPointList struct {
	Entries []Link `json:"entry_point" yaml:"entry_point"`
}

// LoginPost is sent to open an API session.
type LoginPost struct {
	AuthenticationKey string `json:"authenticationkey"`
	Domain            string `json:"domain,omitempty"`
}

// ValueEntry is the `{"value": ...}` document used by several system resources.
type ValueEntry struct {
	Value any `json:"value" yaml:"value"`
}

// BlacklistEndpoint is one side of a blacklist entry.
type BlacklistEndpoint struct {
	Name        string `json:"name"`
	AddressMode string `json:"address_mode"`
	IPNetwork   string `json:"ip_network"`
}

// Blacklist is the document posted to blacklist resources.
type Blacklist struct {
	Duration    int               `json:"duration"`
	Source      BlacklistEndpoint `json:"end_point1"`
	Destination BlacklistEndpoint `json:"end_point2"`
}

// BlacklistEntry builds the blacklist document for the provided source and destination networks.
func BlacklistEntry(src string, dst string, duration int) Blacklist {
	return Blacklist{
		Duration:    duration,
		Source:      BlacklistEndpoint{AddressMode: "address", IPNetwork: src},
		Destination: BlacklistEndpoint{AddressMode: "address", IPNetwork: dst},
	}
}
