package social

type Profile struct {
	Identity       Identity `json:"identity"`
	Username       string   `json:"username"`
	Bio            string   `json:"bio"`
	AvatarURI      string   `json:"avatar_uri"`
	FollowerCount  uint64   `json:"follower_count"`
	FollowingCount uint64   `json:"following_count"`
	PostCount      uint64   `json:"post_count"`
	Registered     bool     `json:"registered"`
}
