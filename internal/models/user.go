package models

import "time"

type User struct {
	ID             string    `json:"id"`
	GitHubID       int64     `json:"githubId"`
	Login          string    `json:"login"`
	Email          string    `json:"email,omitempty"`
	Name           string    `json:"name,omitempty"`
	AvatarURL      string    `json:"avatarUrl"`
	Bio            string    `json:"bio,omitempty"`
	PublicRepos    int       `json:"publicRepos"`
	Followers      int       `json:"followers"`
	Following      int       `json:"following"`
	EncryptedToken string    `json:"-"`
	CreatedAt      time.Time `json:"createdAt"`
	LastLoginAt    time.Time `json:"lastLoginAt"`
}

type HostedRepository struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	FullName      string `json:"fullName"`
	Owner         string `json:"owner"`
	Description   string `json:"description,omitempty"`
	Language      string `json:"language,omitempty"`
	HTMLURL       string `json:"htmlUrl"`
	CloneURL      string `json:"cloneUrl"`
	Stars         int    `json:"stargazersCount"`
	Forks         int    `json:"forksCount"`
	DefaultBranch string `json:"defaultBranch"`
	Private       bool   `json:"private"`
}
