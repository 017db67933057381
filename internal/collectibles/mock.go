package collectibles

import "time"

type mockCast struct {
	hash      string
	fid       int64
	username  string
	display   string
	avatar    string
	text      string
	image     string
	channel   string
	age       time.Duration
	reactions Reactions
}

var mockFeed = []mockCast{
	{
		hash:      "0x1234567890abcdef",
		fid:       1234,
		username:  "alice",
		display:   "Alice Creator",
		avatar:    "https://images.unsplash.com/photo-1494790108755-2616b612b47c?w=100&h=100&fit=crop&crop=face",
		text:      "Just dropped my latest digital art piece! This one represents the intersection of nature and technology. What do you think?",
		image:     "https://images.unsplash.com/photo-1518640467116-512266f676ac?w=400&h=400&fit=crop",
		channel:   "art",
		age:       30 * time.Minute,
		reactions: Reactions{Likes: 142, Recasts: 28, Replies: 15},
	},
	{
		hash:      "0xfedcba0987654321",
		fid:       5678,
		username:  "bob_creates",
		display:   "Bob the Builder",
		avatar:    "https://images.unsplash.com/photo-1472099645785-5658abf4ff4e?w=100&h=100&fit=crop&crop=face",
		text:      "Experimenting with generative patterns. Each piece is unique and created through algorithmic processes.",
		image:     "https://images.unsplash.com/photo-1541961017774-22349e4a1262?w=400&h=400&fit=crop",
		age:       2 * time.Hour,
		reactions: Reactions{Likes: 89, Recasts: 16, Replies: 8},
	},
	{
		hash:      "0xabcdef1234567890",
		fid:       9101,
		username:  "charlie_photo",
		display:   "Charlie Lens",
		avatar:    "https://images.unsplash.com/photo-1507003211169-0a1dd7228f2d?w=100&h=100&fit=crop&crop=face",
		text:      "Captured this moment during golden hour. Sometimes the best art happens when you least expect it.",
		image:     "https://images.unsplash.com/photo-1506905925346-21bda4d32df4?w=400&h=400&fit=crop",
		channel:   "photography",
		age:       4 * time.Hour,
		reactions: Reactions{Likes: 203, Recasts: 45, Replies: 22},
	},
	{
		hash:      "0x567890abcdef1234",
		fid:       1121,
		username:  "diana_design",
		display:   "Diana Designer",
		avatar:    "https://images.unsplash.com/photo-1438761681033-6461ffad8d80?w=100&h=100&fit=crop&crop=face",
		text:      "New character design for my upcoming project. Inspired by cyberpunk aesthetics and nature fusion.",
		image:     "https://images.unsplash.com/photo-1559827260-dc66d52bef19?w=400&h=400&fit=crop",
		age:       6 * time.Hour,
		reactions: Reactions{Likes: 156, Recasts: 31, Replies: 19},
	},
	{
		hash:      "0x234567890abcdef1",
		fid:       3141,
		username:  "eve_artist",
		display:   "Eve Creator",
		avatar:    "https://images.unsplash.com/photo-1544005313-94ddf0286df2?w=100&h=100&fit=crop&crop=face",
		text:      "Abstract composition exploring the relationship between color and emotion. What feelings does this evoke for you?",
		image:     "https://images.unsplash.com/photo-1541961017774-22349e4a1262?w=400&h=400&fit=crop",
		channel:   "abstract",
		age:       8 * time.Hour,
		reactions: Reactions{Likes: 94, Recasts: 18, Replies: 12},
	},
}

// MockItems returns the built-in five-item feed shown when upstream data is
// unavailable. The collection path shows the same casts with fewer reactions.
func MockItems(path Path, now time.Time) []Item {
	out := make([]Item, 0, len(mockFeed))
	for _, m := range mockFeed {
		r := m.reactions
		if path == PathMyCollection {
			r.Likes = r.Likes * 7 / 10
			r.Recasts = r.Recasts * 8 / 10
		}
		out = append(out, FromCast(Cast{
			Hash: m.hash,
			Author: Profile{
				SocialID:    m.fid,
				Username:    m.username,
				DisplayName: m.display,
				AvatarURL:   m.avatar,
			},
			Text:      m.text,
			ImageURL:  m.image,
			ChannelID: m.channel,
			Timestamp: now.Add(-m.age),
			Reactions: r,
		}))
	}
	return out
}
