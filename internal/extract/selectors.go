package extract

import (
	"strings"

	"golang.org/x/net/html"
)

// X.com DOM markers. These change occasionally and are kept together here.
const (
	TestIDTweet         = "tweet"
	TestIDTweetText     = "tweetText"
	TestIDTweetPhoto    = "tweetPhoto"
	TestIDTweetMedia    = "tweetMedia"
	TestIDComposerInput = "tweetTextarea_0"
	TestIDToolbar       = "toolBar"
	TestIDVideo         = "videoComponent"
	TestIDVideoPlayer   = "videoPlayer"

	MediaHost = "twimg.com"

	// TriggerAttr marks the element the user clicked in submitted markup.
	TriggerAttr = "data-xreply-trigger"
)

// Image sources containing any of these are avatars, banners or UI chrome.
var excludedImageMarkers = []string{
	"profile_images",
	"_normal",
	"_bigger",
	"_400x400",
	"_200x200",
	"profile_banners",
	"emoji",
	"verification",
	"badge",
}

func testID(id string) Matcher {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && attr(n, "data-testid") == id
	}
}

var (
	isTweetText     = testID(TestIDTweetText)
	isTweetPhoto    = testID(TestIDTweetPhoto)
	isTweetMedia    = testID(TestIDTweetMedia)
	isComposerInput = func(n *html.Node) bool { return isElement(n, "div") && attr(n, "data-testid") == TestIDComposerInput }
	isToolbar       = testID(TestIDToolbar)
)

func isDialog(n *html.Node) bool {
	return n.Type == html.ElementNode && attr(n, "role") == "dialog"
}

func isArticle(n *html.Node) bool {
	return isElement(n, "article")
}

// isTweetArticle matches article[data-testid="tweet"].
func isTweetArticle(n *html.Node) bool {
	return isArticle(n) && attr(n, "data-testid") == TestIDTweet
}

// isInnerTweet matches div[data-testid="tweet"].
func isInnerTweet(n *html.Node) bool {
	return isElement(n, "div") && attr(n, "data-testid") == TestIDTweet
}

func isMediaImage(n *html.Node) bool {
	return isElement(n, "img") && strings.Contains(attr(n, "src"), MediaHost)
}

func isVideo(n *html.Node) bool {
	if isElement(n, "video") {
		return true
	}
	if n.Type != html.ElementNode {
		return false
	}
	id := attr(n, "data-testid")
	return id == TestIDVideo || id == TestIDVideoPlayer
}

func isStatusLink(n *html.Node) bool {
	return isElement(n, "a") && strings.Contains(attr(n, "href"), "/status/")
}

func isInternalLink(n *html.Node) bool {
	return isElement(n, "a") && strings.HasPrefix(attr(n, "href"), "/")
}

func isProfileLink(n *html.Node) bool {
	href := attr(n, "href")
	return isInternalLink(n) && !strings.HasPrefix(href, "//") && !strings.Contains(href, "/status/")
}

func isTrigger(n *html.Node) bool {
	return n.Type == html.ElementNode && hasAttr(n, TriggerAttr)
}

// isComposerArticle matches articles that hold the reply text input.
func isComposerArticle(n *html.Node) bool {
	return isArticle(n) && findFirst(n, isComposerInput) != nil
}

// hasContentMarkers reports whether n holds tweet text, media or a CDN image.
func hasContentMarkers(n *html.Node) bool {
	return findFirst(n, func(x *html.Node) bool {
		return isTweetText(x) || isTweetPhoto(x) || isTweetMedia(x) || isMediaImage(x)
	}) != nil
}
